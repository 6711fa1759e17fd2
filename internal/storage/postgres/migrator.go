package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

// Ключ advisory-блокировки, чтобы миграции не запускались параллельно
// несколькими экземплярами сервиса.
const migrationLockKey = 840217

// Имена файлов миграций: <версия>_<имя>.(up|down).sql
var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator применяет и откатывает встроенные SQL-миграции схемы.
type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Up применяет ещё не применённые миграции по возрастанию версии.
// steps ограничивает количество применяемых миграций, 0 означает все.
func (m *Migrator) Up(ctx context.Context, steps int) error {
	return m.withLock(ctx, func(ctx context.Context) error {
		migrations, err := loadMigrationsFromFS()
		if err != nil {
			return err
		}

		applied, err := m.appliedVersions(ctx)
		if err != nil {
			return err
		}

		appliedNow := 0
		for _, mig := range migrations {
			if applied[mig.Version] {
				continue
			}
			if steps > 0 && appliedNow >= steps {
				break
			}
			if err := m.applyUp(ctx, mig); err != nil {
				return fmt.Errorf("migration %d_%s: %w", mig.Version, mig.Name, err)
			}
			appliedNow++
		}

		return nil
	})
}

// Status возвращает последнюю применённую версию и количество применённых
// миграций.
func (m *Migrator) Status(ctx context.Context) (int64, int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, 0, err
	}

	versions, err := m.appliedVersionsDesc(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(versions) == 0 {
		return 0, 0, nil
	}
	return versions[0], len(versions), nil
}

// Down откатывает не более steps последних применённых миграций.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	return m.withLock(ctx, func(ctx context.Context) error {
		migrations, err := loadMigrationsFromFS()
		if err != nil {
			return err
		}
		byVersion := make(map[int64]migration, len(migrations))
		for _, mig := range migrations {
			byVersion[mig.Version] = mig
		}

		applied, err := m.appliedVersionsDesc(ctx)
		if err != nil {
			return err
		}

		for i, version := range applied {
			if i >= steps {
				break
			}
			mig, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("no down migration for applied version %d", version)
			}
			if err := m.applyDown(ctx, mig); err != nil {
				return fmt.Errorf("migration %d_%s: %w", mig.Version, mig.Name, err)
			}
		}

		return nil
	})
}

func (m *Migrator) withLock(ctx context.Context, fn func(context.Context) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	return fn(ctx)
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    BIGINT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applyUp(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return fmt.Errorf("apply up: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		mig.Version, mig.Name,
	); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

func (m *Migrator) applyDown(ctx context.Context, mig migration) error {
	if strings.TrimSpace(mig.DownSQL) == "" {
		return fmt.Errorf("empty down migration")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.DownSQL); err != nil {
		return fmt.Errorf("apply down: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = $1", mig.Version,
	); err != nil {
		return fmt.Errorf("remove version: %w", err)
	}

	return tx.Commit()
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("load applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) appliedVersionsDesc(ctx context.Context) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version DESC")
	if err != nil {
		return nil, fmt.Errorf("load applied versions: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func loadMigrationsFromFS() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("sql/migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		parts := migrationFilePattern.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("unexpected migration file name: %s", entry.Name())
		}

		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", entry.Name(), err)
		}

		body, err := migrationsFS.ReadFile("sql/migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &migration{Version: version, Name: parts[2]}
			byVersion[version] = mig
		}
		if mig.Name != parts[2] {
			return nil, fmt.Errorf("version %d has mismatched names %q and %q", version, mig.Name, parts[2])
		}

		switch parts[3] {
		case "up":
			mig.UpSQL = string(body)
		case "down":
			mig.DownSQL = string(body)
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.UpSQL == "" {
			return nil, fmt.Errorf("version %d has no up migration", mig.Version)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}
