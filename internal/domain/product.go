package domain

import "time"

// Product — позиция каталога с конечным остатком на складе.
type Product struct {
	ID   string
	Name string
	// AvailableQty — количество единиц, доступных к продаже.
	AvailableQty int32
	// Version используется для optimistic locking при списании остатков.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequestedLine — одна позиция запроса на размещение заказа.
// Количество приходит от вызывающей стороны и валидируется ядром.
type RequestedLine struct {
	ProductID string
	Quantity  int32
}

// StockUpdate описывает одно списание остатка в батче UpdateQuantities.
// Version — версия товара, прочитанная при резолве каталога; несовпадение
// версии при записи означает гонку чтение-проверка-запись и проваливает
// весь батч с ErrStockConflict.
type StockUpdate struct {
	ProductID   string
	NewQuantity int32
	Version     int64
}
