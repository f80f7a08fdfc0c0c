package factory

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/config"
	"github.com/agentx/aichat/internal/providers"
	"github.com/agentx/aichat/internal/providers/custom"
	"github.com/agentx/aichat/internal/providers/openai"
)

// Result bundles the registry with the shared metrics collector and
// circuit breaker. Both are nil when disabled; the health check and the
// admin metrics endpoints read them.
type Result struct {
	Registry *providers.Registry
	Metrics  *providers.MetricsCollector
	Breaker  *providers.CircuitBreaker
}

// CreateProvider creates a bare provider instance by identifier
func CreateProvider(id string, cfg config.ProvidersConfig, client *http.Client) (providers.Provider, error) {
	switch id {
	case openai.ID:
		return openai.NewProvider(cfg.OpenAIURL, client), nil
	case custom.ID:
		return custom.NewProvider(client), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", id)
	}
}

// BuildRegistry registers every known provider, wrapped in the
// decorators enabled by configuration. Upstream requests go through the
// host proxy when one is configured.
func BuildRegistry(cfg *config.Config, logger *logrus.Logger) (*Result, error) {
	client, err := providers.NewHTTPClient(cfg.Proxy.ProxyURL(), cfg.Providers.Timeout)
	if err != nil {
		return nil, err
	}

	result := &Result{Registry: providers.NewRegistry()}
	if cfg.Providers.MetricsEnabled {
		result.Metrics = providers.NewMetricsCollector()
	}
	if cfg.Providers.CircuitBreaker.Enabled {
		result.Breaker = providers.NewCircuitBreaker(providers.BreakerConfig{
			FailureThreshold: cfg.Providers.CircuitBreaker.FailureThreshold,
			SuccessThreshold: cfg.Providers.CircuitBreaker.SuccessThreshold,
			Timeout:          cfg.Providers.CircuitBreaker.Timeout,
		}, logger)
	}

	for _, id := range []string{openai.ID, custom.ID} {
		p, err := CreateProvider(id, cfg.Providers, client)
		if err != nil {
			return nil, err
		}

		// Retry sits innermost so the breaker and metrics see one
		// outcome per turn.
		p = providers.WithRetry(p, providers.RetryPolicy{
			Attempts: cfg.Providers.RetryAttempts,
			Backoff:  cfg.Providers.RetryBackoff,
		}, logger)
		if result.Breaker != nil {
			p = providers.WithCircuitBreaker(p, result.Breaker)
		}
		if result.Metrics != nil {
			p = providers.WithMetrics(p, result.Metrics)
		}

		result.Registry.Register(p)
		logger.WithFields(logrus.Fields{
			"provider":  id,
			"streaming": p.SupportsStreaming(),
		}).Debug("Registered LLM provider")
	}

	if url := cfg.Proxy.ProxyURL(); url != "" {
		logger.WithField("proxy", url).Info("Routing provider requests through proxy")
	}

	return result, nil
}
