package domain_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// helper для базового валидного запроса с двумя позициями.
func makeLines() []domain.RequestedLine {
	return []domain.RequestedLine{
		{ProductID: "product-1", Quantity: 2},
		{ProductID: "product-2", Quantity: 1},
	}
}

func TestValidatePlacement_Ok(t *testing.T) {
	if errs := domain.ValidatePlacement("customer-1", makeLines()); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestValidatePlacement_Errors(t *testing.T) {
	cases := []struct {
		name       string
		customerID string
		lines      []domain.RequestedLine
		want       error
	}{
		{
			name:       "no customer",
			customerID: "",
			lines:      makeLines(),
			want:       domain.ErrCustomerRequired,
		},
		{
			name:       "no lines",
			customerID: "customer-1",
			lines:      nil,
			want:       domain.ErrLinesRequired,
		},
		{
			name:       "empty product id",
			customerID: "customer-1",
			lines:      []domain.RequestedLine{{ProductID: "", Quantity: 1}},
			want:       domain.ErrProductIDRequired,
		},
		{
			name:       "zero quantity",
			customerID: "customer-1",
			lines:      []domain.RequestedLine{{ProductID: "product-1", Quantity: 0}},
			want:       domain.ErrQuantityInvalid,
		},
		{
			name:       "negative quantity",
			customerID: "customer-1",
			lines:      []domain.RequestedLine{{ProductID: "product-1", Quantity: -3}},
			want:       domain.ErrQuantityInvalid,
		},
		{
			name:       "duplicate product",
			customerID: "customer-1",
			lines: []domain.RequestedLine{
				{ProductID: "product-1", Quantity: 1},
				{ProductID: "product-1", Quantity: 2},
			},
			want: domain.ErrDuplicateProduct,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := domain.ValidatePlacement(tc.customerID, tc.lines)
			if len(errs) == 0 {
				t.Fatalf("expected validation errors, got none")
			}
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					return
				}
			}
			t.Fatalf("expected %v among %v", tc.want, errs)
		})
	}
}

func TestValidatePlacement_CollectsAllViolations(t *testing.T) {
	lines := []domain.RequestedLine{
		{ProductID: "product-1", Quantity: 0},
		{ProductID: "product-1", Quantity: 1},
	}

	errs := domain.ValidatePlacement("", lines)
	if len(errs) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(errs), errs)
	}
}
