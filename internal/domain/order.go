package domain

import "time"

// OrderLine — одна позиция созданного заказа: снимок товара плюс
// зафиксированное количество. После создания заказа позиция неизменяема.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — идентификатор товара в каталоге.
	ProductID string
	// Name — название товара на момент размещения.
	Name string
	// Quantity — подтверждённое количество из запроса.
	Quantity int32
	// CreatedAt фиксирует момент формирования позиции.
	CreatedAt time.Time
}

// Order агрегирует покупателя и позиции размещённого заказа.
// Покупатель встраивается целиком на момент создания; порядок позиций
// повторяет порядок обхода резолвнутого списка товаров каталога.
type Order struct {
	ID        string
	Customer  Customer
	Lines     []OrderLine
	CreatedAt time.Time
}

// ValidatePlacement проверяет входные данные запроса на размещение до
// обращения к коллабораторам и возвращает список замечаний.
func ValidatePlacement(customerID string, lines []RequestedLine) []error {
	var errs []error

	if customerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	// Дубликаты product_id отклоняем явно: семантика «две строки на один
	// товар» не определена, агрегировать количества без решения вызывающей
	// стороны нельзя.
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
			continue
		}
		if line.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateProduct)
			continue
		}
		seen[line.ProductID] = struct{}{}
	}

	return errs
}
