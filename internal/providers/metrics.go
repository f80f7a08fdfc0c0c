package providers

import (
	"context"
	"errors"
	"sync"
	"time"
)

const maxLatencySamples = 100

// MetricsCollector counts provider calls per provider:model
type MetricsCollector struct {
	requests  map[string]int64
	errors    map[string]int64
	latencies map[string][]time.Duration
	mu        sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:  make(map[string]int64),
		errors:    make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

// RecordRequest records a request
func (mc *MetricsCollector) RecordRequest(provider, model string, success bool, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := provider + ":" + model
	mc.requests[key]++
	if !success {
		mc.errors[key]++
	}

	mc.latencies[key] = append(mc.latencies[key], latency)
	if len(mc.latencies[key]) > maxLatencySamples {
		mc.latencies[key] = mc.latencies[key][1:]
	}
}

// MetricsSnapshot is a point-in-time copy of the collected metrics
type MetricsSnapshot struct {
	Requests     map[string]int64   `json:"requests"`
	Errors       map[string]int64   `json:"errors"`
	AvgLatencyMs map[string]float64 `json:"avg_latency_ms"`
}

// Snapshot returns a snapshot of current metrics
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Requests:     make(map[string]int64, len(mc.requests)),
		Errors:       make(map[string]int64, len(mc.errors)),
		AvgLatencyMs: make(map[string]float64, len(mc.latencies)),
	}
	for k, v := range mc.requests {
		snapshot.Requests[k] = v
	}
	for k, v := range mc.errors {
		snapshot.Errors[k] = v
	}
	for k, latencies := range mc.latencies {
		if len(latencies) == 0 {
			continue
		}
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		snapshot.AvgLatencyMs[k] = float64(total.Milliseconds()) / float64(len(latencies))
	}

	return snapshot
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests = make(map[string]int64)
	mc.errors = make(map[string]int64)
	mc.latencies = make(map[string][]time.Duration)
}

type metricsProvider struct {
	Provider
	collector *MetricsCollector
}

// WithMetrics wraps p so every completion is recorded in collector.
// Cancelled requests are not counted.
func WithMetrics(p Provider, collector *MetricsCollector) Provider {
	return &metricsProvider{Provider: p, collector: collector}
}

func (m *metricsProvider) Send(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := m.Provider.Send(ctx, req)
	m.record(req, err, time.Since(start))
	return text, err
}

func (m *metricsProvider) Stream(ctx context.Context, req Request, sink ChunkSink) (string, error) {
	start := time.Now()
	text, err := m.Provider.Stream(ctx, req, sink)
	m.record(req, err, time.Since(start))
	return text, err
}

func (m *metricsProvider) record(req Request, err error, latency time.Duration) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.collector.RecordRequest(m.Name(), req.Model, err == nil, latency)
}
