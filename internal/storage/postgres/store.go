package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	connectTimeout = 5 * time.Second

	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
)

// Store владеет соединением с PostgreSQL и отдаёт его репозиториям.
type Store struct {
	db *sql.DB
}

// Open подключается к PostgreSQL по DSN и проверяет соединение.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает пул соединений для репозиториев.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет живость соединения, используется health-проверками.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// MigrateUp накатывает ожидающие миграции схемы, 0 шагов означает все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return NewMigrator(s.db).Up(ctx, steps)
}

// MigrateDown откатывает steps последних миграций.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	return NewMigrator(s.db).Down(ctx, steps)
}

// MigrationStatus возвращает текущую версию схемы и число применённых
// миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	return NewMigrator(s.db).Status(ctx)
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	return s.db.Close()
}
