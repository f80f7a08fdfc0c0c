package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/config"
)

func TestOpenSQLite_AppliesSchema(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverSQLite, db.Driver)

	var tables []string
	require.NoError(t, db.Select(&tables,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"))
	assert.Equal(t, []string{"chats", "config", "conversations", "messages"}, tables)

	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	// Schema scripts are idempotent.
	require.NoError(t, db.applySQLiteSchema())
	require.NoError(t, RunMigrations(db, config.DatabaseConfig{Driver: DriverSQLite}))
}

func TestNewConnection_UnknownDriver(t *testing.T) {
	_, err := NewConnection(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	dsn := GetDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "aichat", Password: "pw", Database: "aichat", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://aichat:pw@db:5432/aichat?sslmode=disable", dsn)
}

func TestSQLiteRebindUsesQuestionMarks(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "SELECT ? , ?", db.Rebind("SELECT ? , ?"))
}
