package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/providers"
)

// Pinger is satisfied by *sqlx.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthStatus summarizes one provider:model pair from recorded traffic
type HealthStatus struct {
	Healthy      bool    `json:"healthy"`
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	ErrorRate    float64 `json:"error_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	Breaker      string  `json:"breaker,omitempty"`
}

// HealthReport is returned by the health endpoint
type HealthReport struct {
	Status    string                  `json:"status"`
	Database  string                  `json:"database"`
	Providers map[string]HealthStatus `json:"providers,omitempty"`
	CheckedAt time.Time               `json:"checked_at"`
}

// HealthMonitor reports database reachability and provider health. It
// runs no background checks; provider health comes from the metrics
// recorded by real turns and the circuit breaker.
type HealthMonitor struct {
	db      Pinger
	metrics *providers.MetricsCollector
	breaker *providers.CircuitBreaker
	logger  *logrus.Logger
}

// NewHealthMonitor creates a new health monitor. metrics and breaker may
// be nil.
func NewHealthMonitor(db Pinger, metrics *providers.MetricsCollector, breaker *providers.CircuitBreaker, logger *logrus.Logger) *HealthMonitor {
	return &HealthMonitor{db: db, metrics: metrics, breaker: breaker, logger: logger}
}

// Check pings the database and summarizes provider traffic
func (m *HealthMonitor) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    "ok",
		Database:  "ok",
		CheckedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.db.PingContext(ctx); err != nil {
		m.logger.WithError(err).Error("Health check: database unreachable")
		report.Status = "degraded"
		report.Database = "unreachable"
	}

	var snapshot providers.MetricsSnapshot
	if m.metrics != nil {
		snapshot = m.metrics.Snapshot()
	}
	var breakers map[string]string
	if m.breaker != nil {
		breakers = m.breaker.States()
	}
	if len(snapshot.Requests) == 0 && len(breakers) == 0 {
		return report
	}

	report.Providers = make(map[string]HealthStatus, len(snapshot.Requests)+len(breakers))
	for key, state := range breakers {
		report.Providers[key] = HealthStatus{Healthy: state != providers.StateOpen.String(), Breaker: state}
	}
	for key, requests := range snapshot.Requests {
		status := HealthStatus{
			Healthy:      true,
			Requests:     requests,
			Errors:       snapshot.Errors[key],
			AvgLatencyMs: snapshot.AvgLatencyMs[key],
		}
		if requests > 0 {
			status.ErrorRate = float64(status.Errors) / float64(requests)
		}
		// Mark unhealthy if error rate is too high
		if status.ErrorRate > 0.5 && status.Errors > 5 {
			status.Healthy = false
		}
		if state, ok := breakers[key]; ok {
			status.Breaker = state
			status.Healthy = status.Healthy && state != providers.StateOpen.String()
		}
		report.Providers[key] = status
	}

	return report
}
