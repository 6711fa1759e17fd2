package version

import (
	"strings"
	"testing"
)

func TestInfoMatchesAccessors(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatal("version info fields must not be empty")
	}
	if v != GetVersion() || c != GetCommit() || d != GetDate() {
		t.Error("accessors must agree with Info")
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, field := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, field) {
			t.Errorf("String must contain %q, got %q", field, s)
		}
	}
}
