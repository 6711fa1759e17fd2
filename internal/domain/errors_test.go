package domain_test

import (
	"fmt"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestIsStockConflict(t *testing.T) {
	if !domain.IsStockConflict(domain.ErrStockConflict) {
		t.Error("expected true for ErrStockConflict")
	}
	wrapped := fmt.Errorf("update products: %w", domain.ErrStockConflict)
	if !domain.IsStockConflict(wrapped) {
		t.Error("expected true for wrapped ErrStockConflict")
	}
	if domain.IsStockConflict(domain.ErrOrderNotFound) {
		t.Error("expected false for unrelated error")
	}
	if domain.IsStockConflict(nil) {
		t.Error("expected false for nil")
	}
}

func TestIsValidationError(t *testing.T) {
	validation := []error{
		domain.ErrCustomerRequired,
		domain.ErrLinesRequired,
		domain.ErrProductIDRequired,
		domain.ErrQuantityInvalid,
		domain.ErrDuplicateProduct,
		domain.ErrCustomerNotFound,
		domain.ErrProductsNotFound,
		domain.ErrInsufficientStock,
	}
	for _, err := range validation {
		if !domain.IsValidationError(err) {
			t.Errorf("expected %v to be a validation error", err)
		}
		if !domain.IsValidationError(fmt.Errorf("place order: %w", err)) {
			t.Errorf("expected wrapped %v to be a validation error", err)
		}
	}

	system := []error{
		domain.ErrStockUpdateFailed,
		domain.ErrOrderPersistFailed,
		domain.ErrStockConflict,
		domain.ErrProductMatching,
		domain.ErrOutboxPublish,
	}
	for _, err := range system {
		if domain.IsValidationError(err) {
			t.Errorf("expected %v to not be a validation error", err)
		}
	}
}
