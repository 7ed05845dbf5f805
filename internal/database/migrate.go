package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect selects the migration set.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Migrate applies all pending migrations for the dialect and returns the
// resulting schema version.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, logger *zap.Logger) (int64, error) {
	var gooseDialect goose.Dialect
	switch dialect {
	case Postgres:
		gooseDialect = goose.DialectPostgres
	case SQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return 0, fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("Migration applied",
			zap.String("dialect", string(dialect)),
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// MigratePool applies the Postgres migrations through a database/sql handle
// opened on top of the pool.
func MigratePool(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (int64, error) {
	// Closing this handle does not close the pool.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return Migrate(ctx, db, Postgres, logger)
}
