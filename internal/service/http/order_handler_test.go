package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/health"
)

type stubPlacer struct {
	order      domain.Order
	err        error
	placeCalls int
}

func (p *stubPlacer) Place(_ context.Context, customerID string, lines []domain.RequestedLine) (domain.Order, error) {
	p.placeCalls++
	if p.err != nil {
		return domain.Order{}, p.err
	}
	return p.order, nil
}

type stubOrderStore struct {
	orders map[string]domain.Order
}

func (s *stubOrderStore) Create(_ context.Context, customer domain.Customer, lines []domain.OrderLine) (domain.Order, error) {
	return domain.Order{}, nil
}

func (s *stubOrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrderStore) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range s.orders {
		if order.Customer.ID == customerID {
			out = append(out, order)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memIdemStore struct {
	mu    sync.Mutex
	locks map[string]bool
	resps map[string][]byte
}

func newMemIdemStore() *memIdemStore {
	return &memIdemStore{locks: make(map[string]bool), resps: make(map[string][]byte)}
}

func (s *memIdemStore) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *memIdemStore) Remember(_ context.Context, key string, response []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resps[key] = response
	return nil
}

func (s *memIdemStore) Recall(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.resps[key]
	return resp, ok, nil
}

func (s *memIdemStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func testOrder() domain.Order {
	return domain.Order{
		ID: "order-1",
		Customer: domain.Customer{
			ID:    "cust-1",
			Name:  "Анна",
			Email: "anna@example.com",
		},
		Lines: []domain.OrderLine{
			{ID: "line-1", ProductID: "prod-1", Name: "Клавиатура", Quantity: 2},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func newTestRouter(placer *stubPlacer, store *stubOrderStore, idem domain.IdempotencyStore) http.Handler {
	handler := NewOrderHandler(placer, store, idem, nil)
	return NewRouter(handler, health.NewHandler("test"), nil)
}

func placeBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"customer_id": "cust-1",
		"lines": []map[string]any{
			{"product_id": "prod-1", "quantity": 2},
		},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestPlaceOrder_Success(t *testing.T) {
	placer := &stubPlacer{order: testOrder()}
	router := newTestRouter(placer, &stubOrderStore{}, newMemIdemStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", placeBody(t))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.ID)
	assert.Equal(t, "cust-1", resp.CustomerID)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, int32(2), resp.Lines[0].Quantity)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: domain.ErrQuantityInvalid, wantStatus: http.StatusBadRequest},
		{name: "customer not found", err: domain.ErrCustomerNotFound, wantStatus: http.StatusNotFound},
		{name: "products not found", err: domain.ErrProductsNotFound, wantStatus: http.StatusUnprocessableEntity},
		{name: "insufficient stock", err: domain.ErrInsufficientStock, wantStatus: http.StatusUnprocessableEntity},
		{name: "stock conflict", err: domain.ErrStockConflict, wantStatus: http.StatusConflict},
		{name: "persist failure", err: domain.ErrOrderPersistFailed, wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			placer := &stubPlacer{err: tc.err}
			router := newTestRouter(placer, &stubOrderStore{}, newMemIdemStore())

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/orders", placeBody(t))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	placer := &stubPlacer{order: testOrder()}
	router := newTestRouter(placer, &stubOrderStore{}, newMemIdemStore())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, placer.placeCalls)
}

func TestPlaceOrder_IdempotentReplay(t *testing.T) {
	placer := &stubPlacer{order: testOrder()}
	router := newTestRouter(placer, &stubOrderStore{}, newMemIdemStore())

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", placeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/orders", placeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(second, req)

	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, placer.placeCalls, "повтор с тем же ключом не должен размещать заказ заново")

	var resp orderResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.ID)
}

func TestPlaceOrder_IdempotencyLockReleasedOnError(t *testing.T) {
	idem := newMemIdemStore()
	placer := &stubPlacer{err: domain.ErrInsufficientStock}
	router := newTestRouter(placer, &stubOrderStore{}, idem)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", placeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "key-err")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// После ошибки lock снят и повтор запроса обрабатывается заново.
	placer.err = nil
	placer.order = testOrder()
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/orders", placeBody(t))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "key-err")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, placer.placeCalls)
}

func TestGetOrder(t *testing.T) {
	order := testOrder()
	store := &stubOrderStore{orders: map[string]domain.Order{order.ID: order}}
	router := newTestRouter(&stubPlacer{}, store, newMemIdemStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/order-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCustomerOrders(t *testing.T) {
	order := testOrder()
	store := &stubOrderStore{orders: map[string]domain.Order{order.ID: order}}
	router := newTestRouter(&stubPlacer{}, store, newMemIdemStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/customers/cust-1/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Orders []orderResponse `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "order-1", resp.Orders[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/customers/cust-1/orders?limit=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&stubPlacer{}, &stubOrderStore{}, newMemIdemStore())

	for _, path := range []string{"/healthz", "/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
