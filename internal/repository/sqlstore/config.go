package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/agentx/aichat/internal/repository"
)

// ConfigRepository implements repository.ConfigRepository
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *sqlx.DB) repository.ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get retrieves a configuration value
func (r *ConfigRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	query := r.db.Rebind("SELECT value FROM config WHERE name = ?")

	err := r.db.GetContext(ctx, &value, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return value, true, nil
}

// GetAll retrieves all configuration values
func (r *ConfigRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT name, value FROM config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		configs[name] = value
	}

	return configs, rows.Err()
}

// Upsert stores a configuration value
func (r *ConfigRepository) Upsert(ctx context.Context, name, value string) error {
	query := r.db.Rebind(`
		INSERT INTO config (name, value)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE
		SET value = excluded.value
	`)

	_, err := r.db.ExecContext(ctx, query, name, value)
	return err
}

// Delete removes a configuration value
func (r *ConfigRepository) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM config WHERE name = ?"), name)
	return err
}
