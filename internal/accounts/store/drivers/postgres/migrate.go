package postgres

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/postgres/migrations"
	"github.com/pressly/goose/v3"
)

// ApplyMigrations runs the embedded goose migrations.
func (s *Store) ApplyMigrations() error {
	provider, err := goose.NewProvider(goose.DialectPostgres, s.db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}
