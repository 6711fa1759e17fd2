package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// ProductCatalog хранит каталог товаров и остатки в PostgreSQL.
// Списание остатков защищено optimistic locking по колонке version.
type ProductCatalog struct {
	db *sql.DB
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)

func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{db: store.DB()}
}

// FindAllByID возвращает существующие товары по списку идентификаторов,
// отсортированные по id. Отсутствующие идентификаторы молча пропускаются,
// решение о полноте результата принимает вызывающая сторона.
func (c *ProductCatalog) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, available_qty, version, created_at, updated_at
		FROM products
		WHERE id IN (%s)
		ORDER BY id`,
		strings.Join(placeholders, ", ")),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.AvailableQty, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// UpdateQuantities применяет батч списаний в одной транзакции. Каждое
// списание выполняется условным UPDATE с проверкой версии; ноль затронутых
// строк означает либо гонку с другим списанием, либо исчезнувший товар,
// и в обоих случаях транзакция откатывается целиком.
func (c *ProductCatalog) UpdateQuantities(ctx context.Context, updates []domain.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range updates {
		if u.NewQuantity < 0 {
			return fmt.Errorf("%w: product %s quantity below zero", domain.ErrStockUpdateFailed, u.ProductID)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET available_qty = $1, version = version + 1, updated_at = now()
			WHERE id = $2 AND version = $3`,
			u.NewQuantity, u.ProductID, u.Version,
		)
		if err != nil {
			return fmt.Errorf("update product %s: %w", u.ProductID, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for product %s: %w", u.ProductID, err)
		}
		if affected == 0 {
			exists, err := c.productExists(ctx, tx, u.ProductID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrProductsNotFound
			}
			return domain.ErrStockConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stock updates: %w", err)
	}
	return nil
}

func (c *ProductCatalog) productExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product %s: %w", id, err)
	}
	return exists, nil
}

// Seed вставляет или обновляет записи каталога, используется инструментами
// наполнения тестовых данных.
func (c *ProductCatalog) Seed(ctx context.Context, products []domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, available_qty, version, created_at, updated_at)
			VALUES ($1, $2, $3, 1, now(), now())
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    available_qty = EXCLUDED.available_qty,
			    version = products.version + 1,
			    updated_at = now()`,
			p.ID, p.Name, p.AvailableQty,
		)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
