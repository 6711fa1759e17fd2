package placement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

const (
	// Число попыток цикла чтение-валидация-запись при конфликте версий остатка.
	maxPlaceAttempts = 3
	// Базовая задержка exponential backoff между попытками.
	retryBaseDelay = 10 * time.Millisecond

	outboxEventOrderPlaced = "OrderPlaced"
)

// Placer описывает операцию размещения заказа.
type Placer interface {
	// Place валидирует запрос, атомарно списывает остатки и сохраняет заказ.
	// До commit-фазы (списание + сохранение) ни одного побочного эффекта нет.
	Place(ctx context.Context, customerID string, lines []domain.RequestedLine) (domain.Order, error)
}

// placer реализует последовательность шагов размещения:
// покупатель → товары → валидация остатков → списание → сохранение заказа.
type placer struct {
	customers domain.CustomerDirectory
	catalog   domain.ProductCatalog
	orders    domain.OrderStore
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.PlacementMetrics
}

// NewPlacer создаёт рабочий экземпляр операции размещения.
func NewPlacer(
	customers domain.CustomerDirectory,
	catalog domain.ProductCatalog,
	orders domain.OrderStore,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) Placer {
	if logger == nil {
		logger = log.New().WithField("component", "placement")
	}
	return &placer{
		customers: customers,
		catalog:   catalog,
		orders:    orders,
		outbox:    outbox,
		logger:    logger,
		metrics:   metrics.NewPlacementMetrics(),
	}
}

// NewPlacerWithoutMetrics создаёт операцию размещения без метрик (для тестов).
func NewPlacerWithoutMetrics(
	customers domain.CustomerDirectory,
	catalog domain.ProductCatalog,
	orders domain.OrderStore,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) Placer {
	if logger == nil {
		logger = log.New().WithField("component", "placement")
	}
	return &placer{
		customers: customers,
		catalog:   catalog,
		orders:    orders,
		outbox:    outbox,
		logger:    logger,
		metrics:   nil, // Отключаем метрики для тестов
	}
}

// Place выполняет размещение заказа. Любая ошибка до списания остатков
// оставляет каталог и хранилище заказов нетронутыми; конфликт версий
// остатка приводит к повторному чтению свежего снапшота и повторной
// валидации внутри той же операции.
func (p *placer) Place(ctx context.Context, customerID string, lines []domain.RequestedLine) (domain.Order, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordPlacementStarted()
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordPlacementDuration(time.Since(start))
			p.metrics.RecordPlacementFinished()
		}
	}()

	if errs := domain.ValidatePlacement(customerID, lines); len(errs) > 0 {
		err := errs[0]
		p.logger.WithError(err).WithField("customer_id", customerID).Warn("placement request rejected")
		p.recordFailure(err)
		return domain.Order{}, err
	}

	customer, err := p.customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			p.logger.WithField("customer_id", customerID).Warn("customer not found for placement")
			p.recordFailure(err)
			return domain.Order{}, err
		}
		p.recordFailure(err)
		return domain.Order{}, fmt.Errorf("resolve customer: %w", err)
	}

	// После валидации дубликатов нет: список идентификаторов совпадает
	// со строками запроса один к одному.
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	for attempt := 0; attempt < maxPlaceAttempts; attempt++ {
		order, err := p.tryPlace(ctx, customer, lines, ids)
		if err == nil {
			if p.metrics != nil {
				p.metrics.RecordPlacementSucceeded()
			}
			p.logger.WithFields(log.Fields{
				"order_id":    order.ID,
				"customer_id": customer.ID,
				"lines":       len(order.Lines),
			}).Info("order placed")
			return order, nil
		}

		if domain.IsStockConflict(err) && attempt < maxPlaceAttempts-1 {
			if p.metrics != nil {
				p.metrics.RecordStockConflictRetry()
			}
			p.logger.WithFields(log.Fields{
				"customer_id": customer.ID,
				"attempt":     attempt + 1,
			}).Warn("stock version conflict detected, retrying")

			// Exponential backoff с уважением к отмене контекста.
			delay := retryBaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				p.recordFailure(ctx.Err())
				return domain.Order{}, ctx.Err()
			}
			continue
		}

		p.recordFailure(err)
		return domain.Order{}, err
	}

	// Сюда не попадаем: последняя попытка возвращает из цикла.
	p.recordFailure(domain.ErrStockConflict)
	return domain.Order{}, domain.ErrStockConflict
}

// tryPlace выполняет одну попытку: резолв каталога, два прохода по одному и
// тому же снапшоту (валидация и расчёт новых остатков), списание и сохранение.
func (p *placer) tryPlace(ctx context.Context, customer domain.Customer, lines []domain.RequestedLine, ids []string) (domain.Order, error) {
	products, err := p.catalog.FindAllByID(ctx, ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve products: %w", err)
	}
	// Каталог возвращает только существующие товары: расхождение количества
	// означает, что хотя бы один товар неизвестен.
	if len(products) != len(ids) {
		return domain.Order{}, domain.ErrProductsNotFound
	}

	// Первый проход: матчинг строки запроса по каждому резолвнутому товару,
	// проверка остатка, сборка позиций заказа. Порядок позиций повторяет
	// порядок обхода списка каталога.
	now := time.Now().UTC()
	orderLines := make([]domain.OrderLine, 0, len(products))
	for _, product := range products {
		line, ok := findLine(lines, product.ID)
		if !ok {
			return domain.Order{}, domain.ErrProductMatching
		}
		if line.Quantity > product.AvailableQty {
			return domain.Order{}, fmt.Errorf("product %s: %w", product.ID, domain.ErrInsufficientStock)
		}
		orderLines = append(orderLines, domain.OrderLine{
			ID:        uuid.NewString(),
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			CreatedAt: now,
		})
	}

	// Второй проход по тому же снапшоту: расчёт новых остатков.
	// Оба прохода обязаны видеть одни и те же прочитанные количества.
	updates := make([]domain.StockUpdate, 0, len(products))
	for _, product := range products {
		line, ok := findLine(lines, product.ID)
		if !ok {
			return domain.Order{}, domain.ErrProductMatching
		}
		updates = append(updates, domain.StockUpdate{
			ProductID:   product.ID,
			NewQuantity: product.AvailableQty - line.Quantity,
			Version:     product.Version,
		})
	}

	if err := p.catalog.UpdateQuantities(ctx, updates); err != nil {
		if domain.IsStockConflict(err) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrStockUpdateFailed, err)
	}

	order, err := p.orders.Create(ctx, customer, orderLines)
	if err != nil {
		// Остатки уже списаны, заказа нет. Пытаемся восстановить снапшот;
		// при неудаче расхождение остаётся и фиксируется в логах и метриках.
		p.compensateStock(ctx, products)
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrOrderPersistFailed, err)
	}

	p.emitOrderPlaced(order)
	return order, nil
}

// compensateStock возвращает остатки к прочитанному снапшоту после неудачного
// сохранения заказа. Версии после успешного списания сдвинуты на единицу.
func (p *placer) compensateStock(ctx context.Context, products []domain.Product) {
	if p.metrics != nil {
		p.metrics.RecordStockCompensation()
	}

	restore := make([]domain.StockUpdate, 0, len(products))
	for _, product := range products {
		restore = append(restore, domain.StockUpdate{
			ProductID:   product.ID,
			NewQuantity: product.AvailableQty,
			Version:     product.Version + 1,
		})
	}

	if err := p.catalog.UpdateQuantities(ctx, restore); err != nil {
		p.logger.WithError(err).Error("compensating stock restore failed, stock and orders diverged")
	}
}

// emitOrderPlaced кладёт событие о размещённом заказе в transactional outbox.
func (p *placer) emitOrderPlaced(order domain.Order) {
	if p.outbox == nil {
		return
	}

	var totalQty int32
	for _, line := range order.Lines {
		totalQty += line.Quantity
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":       order.ID,
		"customer_id":    order.Customer.ID,
		"line_count":     len(order.Lines),
		"total_quantity": totalQty,
		"ts":             order.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		p.logger.WithError(err).WithField("order_id", order.ID).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     outboxEventOrderPlaced,
		Payload:       payload,
	}
	if _, err := p.outbox.Enqueue(msg); err != nil {
		p.logger.WithError(err).WithField("order_id", order.ID).Error("enqueue event failed")
	} else if p.metrics != nil {
		p.metrics.RecordOutboxEvent()
	}
}

// recordFailure инкрементирует счётчик неудач с причиной.
func (p *placer) recordFailure(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordPlacementFailed(failureReason(err))
}

// findLine ищет строку запроса по идентификатору товара (точное совпадение).
func findLine(lines []domain.RequestedLine, productID string) (domain.RequestedLine, bool) {
	for _, line := range lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return domain.RequestedLine{}, false
}

// failureReason маппит ошибку размещения на label метрики.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, domain.ErrProductsNotFound):
		return "products_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrStockConflict):
		return "stock_conflict"
	case errors.Is(err, domain.ErrStockUpdateFailed):
		return "stock_update_failed"
	case errors.Is(err, domain.ErrOrderPersistFailed):
		return "order_persist_failed"
	case errors.Is(err, domain.ErrProductMatching):
		return "product_matching"
	case domain.IsValidationError(err):
		return "invalid_request"
	default:
		return "internal"
	}
}

var _ Placer = (*placer)(nil)
