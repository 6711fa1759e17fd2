package postgres

import (
	"strings"
	"testing"
)

func TestLoadMigrationsFromFS(t *testing.T) {
	migrations, err := loadMigrationsFromFS()
	if err != nil {
		t.Fatalf("loadMigrationsFromFS: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}

	for i, mig := range migrations {
		if mig.UpSQL == "" {
			t.Errorf("migration %d_%s has empty up script", mig.Version, mig.Name)
		}
		if strings.TrimSpace(mig.DownSQL) == "" {
			t.Errorf("migration %d_%s has empty down script", mig.Version, mig.Name)
		}
		if i > 0 && migrations[i-1].Version >= mig.Version {
			t.Errorf("migrations are not sorted: %d before %d", migrations[i-1].Version, mig.Version)
		}
	}
}

func TestMigrationFilePattern(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		ok      bool
		version string
		dir     string
	}{
		{name: "up", file: "0001_checkout_schema.up.sql", ok: true, version: "0001", dir: "up"},
		{name: "down", file: "0002_outbox_messages.down.sql", ok: true, version: "0002", dir: "down"},
		{name: "no version", file: "checkout_schema.up.sql", ok: false},
		{name: "no direction", file: "0001_checkout_schema.sql", ok: false},
		{name: "bad direction", file: "0001_checkout_schema.sideways.sql", ok: false},
		{name: "not sql", file: "0001_checkout_schema.up.txt", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := migrationFilePattern.FindStringSubmatch(tc.file)
			if !tc.ok {
				if parts != nil {
					t.Fatalf("expected %q to be rejected", tc.file)
				}
				return
			}
			if parts == nil {
				t.Fatalf("expected %q to match", tc.file)
			}
			if parts[1] != tc.version {
				t.Errorf("version: got %q, want %q", parts[1], tc.version)
			}
			if parts[3] != tc.dir {
				t.Errorf("direction: got %q, want %q", parts[3], tc.dir)
			}
		})
	}
}
