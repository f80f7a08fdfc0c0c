package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
	// Requests per minute per user on the chat endpoints.
	ChatRateLimit int    `mapstructure:"chat_rate_limit"`
	Language      string `mapstructure:"language"`
	// StreamStartTimeout bounds the wait for the first event of a
	// streamed turn, before any response has been sent.
	StreamStartTimeout time.Duration `mapstructure:"stream_start_timeout"`
}

type DatabaseConfig struct {
	// Driver is one of "postgres", "pgx" or "sqlite".
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
	// Path is the sqlite database file, ":memory:" for a throwaway store.
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	// JWTSecret verifies the bearer tokens issued by the host platform.
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// SealKey encrypts API keys stored with conversations.
	SealKey string `mapstructure:"seal_key"`
}

// ProxyConfig mirrors the host's outbound proxy settings.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type ProvidersConfig struct {
	Timeout        time.Duration        `mapstructure:"timeout"`
	OpenAIURL      string               `mapstructure:"openai_url"`
	RetryAttempts  int                  `mapstructure:"retry_attempts"`
	RetryBackoff   time.Duration        `mapstructure:"retry_backoff"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	MetricsEnabled bool                 `mapstructure:"metrics_enabled"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("server.chat_rate_limit", 30)
	v.SetDefault("server.language", "en")
	v.SetDefault("server.stream_start_timeout", 60*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "aichat")
	v.SetDefault("database.database", "aichat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "aichat.db")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("providers.timeout", 120*time.Second)
	v.SetDefault("providers.openai_url", "https://api.openai.com/v1")
	v.SetDefault("providers.retry_attempts", 0)
	v.SetDefault("providers.retry_backoff", 500*time.Millisecond)
	v.SetDefault("providers.circuit_breaker.enabled", false)
	v.SetDefault("providers.circuit_breaker.failure_threshold", 5)
	v.SetDefault("providers.circuit_breaker.success_threshold", 2)
	v.SetDefault("providers.circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("providers.metrics_enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads config.json from the working directory, ./config or
// ~/.aichat and applies environment overrides on top.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".aichat"))
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads the config from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("AICHAT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("AICHAT_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if origins := os.Getenv("AICHAT_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = origins
	}

	if secret := os.Getenv("AICHAT_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if key := os.Getenv("AICHAT_SEAL_KEY"); key != "" {
		cfg.Auth.SealKey = key
	}

	if driver := os.Getenv("AICHAT_DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if path := os.Getenv("AICHAT_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if proxy := os.Getenv("AICHAT_PROXY_HOST"); proxy != "" {
		cfg.Proxy.Enabled = true
		cfg.Proxy.Host = proxy
	}
	if proxyPort := os.Getenv("AICHAT_PROXY_PORT"); proxyPort != "" {
		if port, err := strconv.Atoi(proxyPort); err == nil {
			cfg.Proxy.Port = port
		}
	}

	if level := os.Getenv("AICHAT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// NewLogger builds the process logger from the logging section.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// ProxyURL returns the outbound proxy address, or "" when disabled.
func (p ProxyConfig) ProxyURL() string {
	if !p.Enabled || p.Host == "" {
		return ""
	}
	if p.Port == 0 {
		return fmt.Sprintf("http://%s", p.Host)
	}
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}
