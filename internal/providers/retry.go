package providers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy configures WithRetry
type RetryPolicy struct {
	// Attempts is the number of retries after the first call
	Attempts int
	// Backoff is the delay before the first retry, doubled each time
	Backoff time.Duration
}

type retryProvider struct {
	Provider
	policy RetryPolicy
	logger *logrus.Logger
}

// WithRetry retries transport failures and 5xx/429 responses. A stream is
// retried only if no chunk reached the sink, so a client never sees the
// same reply twice.
func WithRetry(p Provider, policy RetryPolicy, logger *logrus.Logger) Provider {
	if policy.Attempts <= 0 {
		return p
	}
	return &retryProvider{Provider: p, policy: policy, logger: logger}
}

func (r *retryProvider) Send(ctx context.Context, req Request) (string, error) {
	var text string
	err := r.do(ctx, req, func() (bool, error) {
		var err error
		text, err = r.Provider.Send(ctx, req)
		return true, err
	})
	return text, err
}

func (r *retryProvider) Stream(ctx context.Context, req Request, sink ChunkSink) (string, error) {
	var text string
	err := r.do(ctx, req, func() (bool, error) {
		relayed := false
		wrapped := func(chunk []byte) error {
			relayed = true
			return sink(chunk)
		}
		if sink == nil {
			wrapped = nil
		}

		var err error
		text, err = r.Provider.Stream(ctx, req, wrapped)
		return !relayed, err
	})
	return text, err
}

// do runs call until it succeeds, fails permanently, or attempts run out.
// call reports whether a failed attempt may be repeated.
func (r *retryProvider) do(ctx context.Context, req Request, call func() (bool, error)) error {
	delay := r.policy.Backoff

	for attempt := 0; ; attempt++ {
		repeatable, err := call()
		if err == nil || !repeatable || !isUpstreamFault(err) || attempt >= r.policy.Attempts {
			return err
		}

		r.logger.WithError(err).WithFields(logrus.Fields{
			"provider": r.Name(),
			"model":    req.Model,
			"attempt":  attempt + 1,
		}).Warn("Retrying provider request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
