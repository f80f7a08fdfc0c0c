package database

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/agentx/aichat/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// RunMigrations brings the database schema up to date. SQLite stores get
// their schema when opened, so only PostgreSQL goes through migrate.
func RunMigrations(db *DB, cfg config.DatabaseConfig) error {
	if db.Driver == DriverSQLite {
		return nil
	}

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RollbackMigration rolls back the last migration
func RollbackMigration(cfg config.DatabaseConfig) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	return nil
}

func newMigrate(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, GetDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
}

// applySQLiteSchema executes the embedded sqlite scripts in name order.
// Every statement is idempotent.
func (db *DB) applySQLiteSchema() error {
	files, err := fs.Glob(migrationsFS, "migrations/sqlite/*.up.sql")
	if err != nil {
		return fmt.Errorf("listing sqlite schema: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		script, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if _, err := db.Exec(string(script)); err != nil {
			return fmt.Errorf("applying %s: %w", name, err)
		}
	}

	return nil
}
