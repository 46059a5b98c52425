package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/oldrefery/summit-backend-sub001/migrations"
	"github.com/pressly/goose/v3"
)

// Migrate applies the embedded goose migrations. Direction is "up", "down" or
// "status".
func (db *DB) Migrate(ctx context.Context, direction string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	// Goose needs a database/sql handle
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	var err error
	switch direction {
	case "up":
		err = goose.UpContext(ctx, sqlDB, ".")
	case "down":
		err = goose.DownContext(ctx, sqlDB, ".")
	case "status":
		err = goose.StatusContext(ctx, sqlDB, ".")
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}

	if db.logger != nil {
		db.logger.Info("migrations applied", slog.String("direction", direction))
	}
	return nil
}
