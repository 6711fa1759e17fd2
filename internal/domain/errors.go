package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка пустого списка позиций запроса.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отсутствующего идентификатора товара в строке запроса.
	ErrProductIDRequired = errors.New("line product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка повторяющегося товара в одном запросе.
	ErrDuplicateProduct = errors.New("duplicate product in order lines")
	// ErrCustomerNotFound возвращается, если покупатель не найден в справочнике.
	ErrCustomerNotFound = errors.New("customer does not exist")
	// ErrProductsNotFound — в запросе есть хотя бы один неизвестный товар.
	// Конкретные идентификаторы не перечисляются: сигнал агрегатный.
	ErrProductsNotFound = errors.New("some of the products in order do not exist")
	// ErrInsufficientStock — запрошенное количество превышает доступный остаток.
	ErrInsufficientStock = errors.New("requested quantity is not available")
	// ErrProductMatching — резолвнутый товар не сматчился ни с одной строкой
	// запроса. Нарушение внутреннего инварианта, не пользовательская ошибка.
	ErrProductMatching = errors.New("resolved product has no matching request line")
	// ErrStockConflict — остаток изменился между чтением и записью
	// (несовпадение версии при compare-and-set). Сигнал для retry.
	ErrStockConflict = errors.New("stock version conflict")
	// ErrStockUpdateFailed — хранилище каталога не приняло батч списаний.
	ErrStockUpdateFailed = errors.New("stock update failed")
	// ErrOrderPersistFailed — хранилище заказов не сохранило заказ.
	ErrOrderPersistFailed = errors.New("order persist failed")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsStockConflict проверяет, является ли ошибка конфликтом версий остатка.
func IsStockConflict(err error) bool {
	return errors.Is(err, ErrStockConflict)
}

// IsValidationError сообщает, относится ли ошибка к категории клиентских:
// такие ошибки должны маппиться на 4xx и не означают сбой хранилища.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrCustomerRequired,
		ErrLinesRequired,
		ErrProductIDRequired,
		ErrQuantityInvalid,
		ErrDuplicateProduct,
		ErrCustomerNotFound,
		ErrProductsNotFound,
		ErrInsufficientStock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
