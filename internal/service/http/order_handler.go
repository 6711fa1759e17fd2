package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/placement"
)

const (
	handlerTimeout = 5 * time.Second

	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// OrderHandler обслуживает REST-операции размещения и чтения заказов.
type OrderHandler struct {
	placer placement.Placer
	orders domain.OrderStore
	idem   domain.IdempotencyStore
	logger *log.Entry
}

func NewOrderHandler(placer placement.Placer, orders domain.OrderStore, idem domain.IdempotencyStore, logger *log.Entry) *OrderHandler {
	if logger == nil {
		logger = log.NewEntry(log.New())
	}
	return &OrderHandler{
		placer: placer,
		orders: orders,
		idem:   idem,
		logger: logger.WithField("component", "http.order_handler"),
	}
}

type placeOrderRequest struct {
	CustomerID string           `json:"customer_id"`
	Lines      []placeOrderLine `json:"lines"`
}

type placeOrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type orderLineResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customer_id"`
	Lines      []orderLineResponse `json:"lines"`
	CreatedAt  time.Time           `json:"created_at"`
}

func toOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:         order.ID,
		CustomerID: order.Customer.ID,
		Lines:      make([]orderLineResponse, 0, len(order.Lines)),
		CreatedAt:  order.CreatedAt,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:        line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			CreatedAt: line.CreatedAt,
		})
	}
	return resp
}

// PlaceOrder обрабатывает POST /v1/orders. При наличии заголовка
// Idempotency-Key повторный запрос с тем же ключом возвращает сохранённый
// ответ вместо повторного размещения.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	idemKey := c.GetHeader(idempotencyHeader)
	if idemKey != "" {
		if replayed := h.tryReplay(ctx, c, idemKey); replayed {
			return
		}
	}

	lines := make([]domain.RequestedLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, domain.RequestedLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	order, err := h.placer.Place(ctx, req.CustomerID, lines)
	if err != nil {
		if idemKey != "" {
			if relErr := h.idem.Release(ctx, idemKey); relErr != nil {
				h.logger.WithError(relErr).Warn("не удалось снять idempotency lock")
			}
		}
		h.writeError(c, err)
		return
	}

	resp := toOrderResponse(order)
	if idemKey != "" {
		h.rememberResponse(ctx, idemKey, resp)
	}

	c.JSON(http.StatusCreated, resp)
}

// tryReplay возвращает true, если запрос уже обработан или обрабатывается
// прямо сейчас, и ответ клиенту отправлен.
func (h *OrderHandler) tryReplay(ctx context.Context, c *gin.Context, key string) bool {
	if stored, found, err := h.idem.Recall(ctx, key); err != nil {
		h.logger.WithError(err).Warn("idempotency store недоступен, запрос обрабатывается без защиты")
		return false
	} else if found {
		c.Data(http.StatusOK, "application/json", stored)
		return true
	}

	locked, err := h.idem.TryLock(ctx, key, idempotencyTTL)
	if err != nil {
		h.logger.WithError(err).Warn("idempotency store недоступен, запрос обрабатывается без защиты")
		return false
	}
	if !locked {
		c.JSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is already in progress"})
		return true
	}

	return false
}

func (h *OrderHandler) rememberResponse(ctx context.Context, key string, resp orderResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.WithError(err).Error("не удалось сериализовать ответ для idempotency store")
		return
	}
	if err := h.idem.Remember(ctx, key, body, idempotencyTTL); err != nil {
		h.logger.WithError(err).Warn("не удалось сохранить ответ в idempotency store")
	}
}

// GetOrder обрабатывает GET /v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	order, err := h.orders.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// ListCustomerOrders обрабатывает GET /v1/customers/:id/orders.
func (h *OrderHandler) ListCustomerOrders(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), handlerTimeout)
	defer cancel()

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	orders, err := h.orders.ListByCustomer(ctx, c.Param("id"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}

	c.JSON(http.StatusOK, gin.H{"orders": resp})
}

// writeError транслирует доменные ошибки в HTTP-статусы.
func (h *OrderHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound), errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProductsNotFound), errors.Is(err, domain.ErrInsufficientStock):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStockConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		h.logger.WithError(err).Error("размещение заказа завершилось внутренней ошибкой")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
