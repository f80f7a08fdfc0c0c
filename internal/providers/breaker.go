package providers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/models"
)

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig holds the thresholds shared by every breaker
type BreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	Timeout          time.Duration
}

// CircuitBreaker keeps one breaker per provider:model key
type CircuitBreaker struct {
	config   BreakerConfig
	logger   *logrus.Logger
	breakers map[string]*breaker
	mu       sync.Mutex
	now      func() time.Time
}

type breaker struct {
	failures    uint32
	successes   uint32
	lastFailure time.Time
	state       BreakerState
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*breaker),
		now:      time.Now,
	}
}

// Allow reports whether a call for key may proceed, moving an expired
// open breaker to half-open.
func (cb *CircuitBreaker) Allow(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b := cb.get(key)
	if b.state == StateOpen && cb.now().Sub(b.lastFailure) > cb.config.Timeout {
		b.state = StateHalfOpen
		b.failures = 0
		b.successes = 0
	}
	return b.state != StateOpen
}

// Record updates the breaker for key with the outcome of a call
func (cb *CircuitBreaker) Record(key string, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b := cb.get(key)
	if success {
		b.successes++
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			if b.successes >= cb.config.SuccessThreshold {
				b.state = StateClosed
				b.failures = 0
				b.successes = 0
				cb.logger.WithField("key", key).Info("Circuit breaker closed")
			}
		}
		return
	}

	b.failures++
	b.lastFailure = cb.now()
	switch b.state {
	case StateClosed:
		if b.failures >= cb.config.FailureThreshold {
			b.state = StateOpen
			cb.logger.WithField("key", key).WithField("failures", b.failures).Warn("Circuit breaker opened")
		}
	case StateHalfOpen:
		b.state = StateOpen
		cb.logger.WithField("key", key).Warn("Circuit breaker re-opened after half-open failure")
	}
}

// State returns the state of a specific breaker
func (cb *CircuitBreaker) State(key string) BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if b, ok := cb.breakers[key]; ok {
		return b.state
	}
	return StateClosed
}

// States returns the state of every breaker seen so far, keyed by
// provider:model
func (cb *CircuitBreaker) States() map[string]string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	states := make(map[string]string, len(cb.breakers))
	for key, b := range cb.breakers {
		states[key] = b.state.String()
	}
	return states
}

// Reset closes a specific breaker. It reports false for an unknown key.
func (cb *CircuitBreaker) Reset(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if _, ok := cb.breakers[key]; !ok {
		return false
	}
	delete(cb.breakers, key)
	cb.logger.WithField("key", key).Info("Circuit breaker reset")
	return true
}

func (cb *CircuitBreaker) get(key string) *breaker {
	b, ok := cb.breakers[key]
	if !ok {
		b = &breaker{state: StateClosed}
		cb.breakers[key] = b
	}
	return b
}

// breakerProvider short-circuits calls while the upstream is failing.
// Only upstream faults count: auth and configuration errors say nothing
// about the provider's health.
type breakerProvider struct {
	Provider
	breaker *CircuitBreaker
}

// WithCircuitBreaker wraps p with cb
func WithCircuitBreaker(p Provider, cb *CircuitBreaker) Provider {
	return &breakerProvider{Provider: p, breaker: cb}
}

func (b *breakerProvider) Send(ctx context.Context, req Request) (string, error) {
	key := b.Name() + ":" + req.Model
	if !b.breaker.Allow(key) {
		return "", models.NewProviderError(503, "the LLM provider is temporarily unavailable")
	}
	text, err := b.Provider.Send(ctx, req)
	b.record(key, err)
	return text, err
}

func (b *breakerProvider) Stream(ctx context.Context, req Request, sink ChunkSink) (string, error) {
	key := b.Name() + ":" + req.Model
	if !b.breaker.Allow(key) {
		return "", models.NewProviderError(503, "the LLM provider is temporarily unavailable")
	}
	text, err := b.Provider.Stream(ctx, req, sink)
	b.record(key, err)
	return text, err
}

func (b *breakerProvider) record(key string, err error) {
	switch {
	case err == nil:
		b.breaker.Record(key, true)
	case isUpstreamFault(err):
		b.breaker.Record(key, false)
	}
}

// isUpstreamFault reports transport failures and 5xx/429 provider errors.
func isUpstreamFault(err error) bool {
	var e *models.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case models.KindTransport:
		return true
	case models.KindProvider:
		return e.Status >= 500 || e.Status == 429
	default:
		return false
	}
}
