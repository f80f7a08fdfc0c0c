package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	err := os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"database": {"driver": "sqlite", "path": ":memory:"},
		"proxy": {"enabled": true, "host": "proxy.local", "port": 3128},
		"providers": {"retry_attempts": 2, "circuit_breaker": {"enabled": true}}
	}`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Providers.RetryAttempts)
	assert.True(t, cfg.Providers.CircuitBreaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Providers.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Providers.CircuitBreaker.Timeout)
	assert.Equal(t, "http://proxy.local:3128", cfg.Proxy.ProxyURL())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AICHAT_PORT", "7070")
	t.Setenv("AICHAT_DB_DRIVER", "pgx")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("AICHAT_JWT_SECRET", "s3cret")

	cfg := &Config{}
	loadEnvOverrides(cfg)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestProxyURL(t *testing.T) {
	tests := []struct {
		name  string
		proxy ProxyConfig
		want  string
	}{
		{"disabled", ProxyConfig{Host: "p", Port: 1}, ""},
		{"no host", ProxyConfig{Enabled: true}, ""},
		{"no port", ProxyConfig{Enabled: true, Host: "p"}, "http://p"},
		{"full", ProxyConfig{Enabled: true, Host: "p", Port: 8080}, "http://p:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.proxy.ProxyURL())
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug", Format: "json"}}
	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	cfg.Logging.Level = "nonsense"
	assert.Equal(t, logrus.InfoLevel, cfg.NewLogger().GetLevel())
}
