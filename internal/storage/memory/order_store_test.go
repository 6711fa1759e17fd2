package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func makeCustomer(id string) domain.Customer {
	return domain.Customer{
		ID:        id,
		Name:      "Customer " + id,
		Email:     id + "@example.com",
		CreatedAt: time.Now().UTC(),
	}
}

func TestOrderStore_CreateAndGet(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()

	lines := []domain.OrderLine{
		{ProductID: "product-1", Name: "widget", Quantity: 2},
	}

	order, err := store.Create(ctx, makeCustomer("customer-1"), lines)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.ID == "" {
		t.Fatal("expected generated order id")
	}
	if order.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if len(order.Lines) != 1 || order.Lines[0].ID == "" {
		t.Fatalf("expected line with generated id, got %+v", order.Lines)
	}

	loaded, err := store.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.Customer.ID != "customer-1" {
		t.Errorf("expected embedded customer, got %s", loaded.Customer.ID)
	}
	if loaded.Lines[0].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", loaded.Lines[0].Quantity)
	}
}

func TestOrderStore_GetUnknown(t *testing.T) {
	store := NewOrderStore()

	if _, err := store.Get(context.Background(), "missing"); err != domain.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_ListByCustomer(t *testing.T) {
	store := NewOrderStore()
	ctx := context.Background()

	customer := makeCustomer("customer-1")
	for i := 0; i < 3; i++ {
		if _, err := store.Create(ctx, customer, []domain.OrderLine{{ProductID: "product-1", Quantity: 1}}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, makeCustomer("customer-2"), []domain.OrderLine{{ProductID: "product-2", Quantity: 1}}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := store.ListByCustomer(ctx, "customer-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}

	limited, err := store.ListByCustomer(ctx, "customer-1", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 orders with limit, got %d", len(limited))
	}
}
