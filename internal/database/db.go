package database

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/agentx/aichat/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB wraps the database connection
type DB struct {
	*sqlx.DB
	Driver string
}

// NewConnection opens the database selected by cfg.Driver
func NewConnection(cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverPGX, "":
		driver := cfg.Driver
		if driver == "" {
			driver = DriverPostgres
		}
		return openPostgres(driver, cfg)
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func openPostgres(driver string, cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// OpenSQLite opens a SQLite database and applies the schema. Path
// ":memory:" gives a private in-memory store, which tests use.
func OpenSQLite(path string) (*DB, error) {
	if path == "" {
		path = ":memory:"
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite serializes writers and an in-memory database lives in a
	// single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	wrapped := &DB{DB: db, Driver: DriverSQLite}
	if err := wrapped.applySQLiteSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return wrapped, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// GetDSN returns the connection URL used by migrations
func GetDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)
}
