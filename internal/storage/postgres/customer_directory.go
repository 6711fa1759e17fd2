package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const queryTimeout = 3 * time.Second

// CustomerDirectory читает справочник покупателей из PostgreSQL.
type CustomerDirectory struct {
	db *sql.DB
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)

func NewCustomerDirectory(store *Store) *CustomerDirectory {
	return &CustomerDirectory{db: store.DB()}
}

func (d *CustomerDirectory) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c domain.Customer
	err := d.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM customers WHERE id = $1", id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	return c, nil
}

// Seed вставляет или обновляет записи справочника, используется инструментами
// наполнения тестовых данных.
func (d *CustomerDirectory) Seed(ctx context.Context, customers []domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	for _, c := range customers {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO customers (id, name, email)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, email = EXCLUDED.email`,
			c.ID, c.Name, c.Email,
		)
		if err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}

	return nil
}
