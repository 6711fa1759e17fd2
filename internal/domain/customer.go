package domain

import "time"

// Customer — запись покупателя из справочника клиентов.
// Для размещения заказа важен только факт её существования; содержимое
// фиксируется в заказе как снимок на момент создания.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
