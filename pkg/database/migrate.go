package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/sgpt-dev/sgpt-api/pkg/config"
)

// Migrate applies pending SQL migrations from the configured directory.
// A dirty or up-to-date database is not treated as a failure.
func Migrate(cfg config.DatabaseConfig) error {
	if cfg.MigrationsDir == "" {
		return nil
	}

	sourceURL := fmt.Sprintf("file://%s", cfg.MigrationsDir)
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close() //nolint:errcheck

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
