package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// OrderStore персистит размещённые заказы в PostgreSQL.
// Заказ и его позиции записываются в одной транзакции.
type OrderStore struct {
	db *sql.DB
}

var _ domain.OrderStore = (*OrderStore)(nil)

func NewOrderStore(store *Store) *OrderStore {
	return &OrderStore{db: store.DB()}
}

func (s *OrderStore) Create(ctx context.Context, customer domain.Customer, lines []domain.OrderLine) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order := domain.Order{
		ID:       uuid.NewString(),
		Customer: customer,
		Lines:    make([]domain.OrderLine, 0, len(lines)),
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, customer_id)
		VALUES ($1, $2)
		RETURNING created_at`,
		order.ID, customer.ID,
	).Scan(&order.CreatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range lines {
		line.ID = uuid.NewString()
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_lines (id, order_id, product_id, name, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			line.ID, order.ID, line.ProductID, line.Name, line.Quantity,
		).Scan(&line.CreatedAt)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}

	return order, nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var order domain.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT o.id, o.created_at, c.id, c.name, c.email, c.created_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1`,
		id,
	).Scan(
		&order.ID, &order.CreatedAt,
		&order.Customer.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	order.Lines, err = s.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (s *OrderStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT o.id, o.created_at, c.id, c.name, c.email, c.created_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC`
	args := []any{customerID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID, &order.CreatedAt,
			&order.Customer.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		orders[i].Lines, err = s.loadLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return orders, nil
}

func (s *OrderStore) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, name, quantity, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at, id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Name, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}
