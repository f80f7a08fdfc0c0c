package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/providers"
)

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

func TestHealthMonitor_HidesDatabaseError(t *testing.T) {
	monitor := NewHealthMonitor(stubPinger{err: errors.New("dial tcp 10.0.0.7:5432: connection refused")}, nil, nil, testLogger())

	report := monitor.Check(context.Background())
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unreachable", report.Database)
	assert.Nil(t, report.Providers)
}

func TestHealthMonitor_ProviderHealth(t *testing.T) {
	metrics := providers.NewMetricsCollector()
	for i := 0; i < 6; i++ {
		metrics.RecordRequest("openai", "gpt-4o", false, time.Millisecond)
	}
	metrics.RecordRequest("custom", "llama", true, time.Millisecond)

	breaker := providers.NewCircuitBreaker(providers.BreakerConfig{FailureThreshold: 1}, testLogger())
	breaker.Record("custom:llama", false)
	breaker.Record("custom:mistral", true)

	report := NewHealthMonitor(stubPinger{}, metrics, breaker, testLogger()).Check(context.Background())
	assert.Equal(t, "ok", report.Status)
	require.Len(t, report.Providers, 3)

	assert.False(t, report.Providers["openai:gpt-4o"].Healthy, "error rate too high")
	assert.Equal(t, 1.0, report.Providers["openai:gpt-4o"].ErrorRate)

	llama := report.Providers["custom:llama"]
	assert.False(t, llama.Healthy, "breaker is open")
	assert.Equal(t, "open", llama.Breaker)
	assert.Equal(t, int64(1), llama.Requests)

	assert.True(t, report.Providers["custom:mistral"].Healthy)
	assert.Equal(t, "closed", report.Providers["custom:mistral"].Breaker)
}
