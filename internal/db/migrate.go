package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/cityroam/cityroam/internal/db/migrations"
)

// Migrate brings the tile store schema up to date from the embedded
// migrations, reusing the handle's own pool through a database/sql
// adapter.
func (d *DB) Migrate(ctx context.Context) error {
	// Closing the adapter releases its connections back to the pool; the
	// pool itself stays open.
	sqlDB := stdlib.OpenDBFromPool(d.pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
