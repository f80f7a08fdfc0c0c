package providers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/aichat/internal/models"
)

// scriptedProvider answers from a queue of results and counts calls
type scriptedProvider struct {
	mu      sync.Mutex
	results []error
	calls   int
	chunks  [][]byte
}

func (s *scriptedProvider) Name() string            { return "scripted" }
func (s *scriptedProvider) SupportsStreaming() bool { return true }

func (s *scriptedProvider) Models(ctx context.Context, req Request) ([]Model, error) {
	return []Model{{ID: req.Model}}, nil
}

func (s *scriptedProvider) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func (s *scriptedProvider) Send(ctx context.Context, req Request) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *scriptedProvider) Stream(ctx context.Context, req Request, sink ChunkSink) (string, error) {
	for _, c := range s.chunks {
		if err := sink(c); err != nil {
			return "", err
		}
	}
	if err := s.next(); err != nil {
		return "", err
	}
	return "ok", nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&scriptedProvider{})

	p, err := r.Resolve("scripted")
	require.NoError(t, err)
	assert.Equal(t, "scripted", p.Name())
	assert.True(t, r.Has("scripted"))
	assert.Equal(t, []string{"scripted"}, r.List())

	_, err = r.Resolve("nonexistent")
	assert.True(t, models.IsKind(err, models.KindConfiguration))

	_, err = r.Resolve("")
	assert.True(t, models.IsKind(err, models.KindConfiguration))
}

func TestRegistry_DescribeDefaultsToAPIKeyRequired(t *testing.T) {
	r := NewRegistry()
	r.Register(WithMetrics(&scriptedProvider{}, NewMetricsCollector()))

	caps := r.Describe()
	require.Len(t, caps, 1)
	assert.Equal(t, Capabilities{ID: "scripted", Streaming: true, RequiresAPIKey: true}, caps[0])
}

func TestRetry_RetriesUpstreamFaults(t *testing.T) {
	inner := &scriptedProvider{results: []error{
		models.NewProviderError(502, "bad gateway"),
		models.NewTransportError("reset", errors.New("connection reset")),
	}}
	p := WithRetry(inner, RetryPolicy{Attempts: 2, Backoff: time.Millisecond}, quietLogger())

	text, err := p.Send(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, inner.calls)
}

func TestRetry_DoesNotRetryAuthErrors(t *testing.T) {
	inner := &scriptedProvider{results: []error{models.NewAuthError("invalid key")}}
	p := WithRetry(inner, RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, quietLogger())

	_, err := p.Send(context.Background(), Request{Model: "m"})
	assert.True(t, models.IsKind(err, models.KindAuth))
	assert.Equal(t, 1, inner.calls)
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	fault := models.NewProviderError(500, "boom")
	inner := &scriptedProvider{results: []error{fault, fault, fault, fault}}
	p := WithRetry(inner, RetryPolicy{Attempts: 2, Backoff: time.Millisecond}, quietLogger())

	_, err := p.Send(context.Background(), Request{Model: "m"})
	assert.Equal(t, fault, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetry_StreamNotRepeatedAfterRelay(t *testing.T) {
	inner := &scriptedProvider{
		results: []error{models.NewProviderError(500, "boom")},
		chunks:  [][]byte{[]byte("data: partial\n")},
	}
	p := WithRetry(inner, RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, quietLogger())

	var relayed int
	_, err := p.Stream(context.Background(), Request{Model: "m"}, func([]byte) error {
		relayed++
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, relayed)
}

func TestRetry_ZeroAttemptsIsPassthrough(t *testing.T) {
	inner := &scriptedProvider{}
	assert.Same(t, Provider(inner), WithRetry(inner, RetryPolicy{}, quietLogger()))
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}, quietLogger())
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }

	fault := models.NewProviderError(503, "unavailable")
	inner := &scriptedProvider{results: []error{fault, fault}}
	p := WithCircuitBreaker(inner, cb)
	req := Request{Model: "gpt"}

	_, _ = p.Send(context.Background(), req)
	_, _ = p.Send(context.Background(), req)
	assert.Equal(t, StateOpen, cb.State("scripted:gpt"))

	_, err := p.Send(context.Background(), req)
	var e *models.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 503, e.Status)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the provider")

	clock = clock.Add(2 * time.Minute)
	text, err := p.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, StateClosed, cb.State("scripted:gpt"))
}

func TestCircuitBreaker_IgnoresClientErrors(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1}, quietLogger())
	inner := &scriptedProvider{results: []error{
		models.NewAuthError("invalid key"),
		models.NewProviderError(400, "bad request"),
	}}
	p := WithCircuitBreaker(inner, cb)

	_, _ = p.Send(context.Background(), Request{Model: "m"})
	_, _ = p.Send(context.Background(), Request{Model: "m"})
	assert.Equal(t, StateClosed, cb.State("scripted:m"))
}

func TestCircuitBreaker_KeysArePerModel(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1}, quietLogger())
	cb.Record("a:m1", false)

	assert.False(t, cb.Allow("a:m1"))
	assert.True(t, cb.Allow("a:m2"))

	assert.Equal(t, map[string]string{"a:m1": "open", "a:m2": "closed"}, cb.States())

	assert.True(t, cb.Reset("a:m1"))
	assert.True(t, cb.Allow("a:m1"))
	assert.False(t, cb.Reset("b:m1"))
}

func TestMetrics_RecordsOutcomes(t *testing.T) {
	collector := NewMetricsCollector()
	inner := &scriptedProvider{results: []error{nil, models.NewProviderError(500, "boom"), context.Canceled}}
	p := WithMetrics(inner, collector)

	_, _ = p.Send(context.Background(), Request{Model: "m"})
	_, _ = p.Stream(context.Background(), Request{Model: "m"}, func([]byte) error { return nil })
	_, _ = p.Send(context.Background(), Request{Model: "m"})

	snapshot := collector.Snapshot()
	assert.Equal(t, int64(2), snapshot.Requests["scripted:m"])
	assert.Equal(t, int64(1), snapshot.Errors["scripted:m"])
	assert.Contains(t, snapshot.AvgLatencyMs, "scripted:m")

	collector.Reset()
	assert.Empty(t, collector.Snapshot().Requests)
}
