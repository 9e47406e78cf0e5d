package embeddings

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kamusis/cerebro/internal/logger"
)

var log = logger.ForComponent("embeddings")

// RetryPolicy bounds retries of TransientError failures.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultRetryPolicy waits 1s, 2s, ... capped at 32s, for at most 3 attempts.
var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: time.Second,
	MaxInterval:     32 * time.Second,
	MaxAttempts:     3,
}

// WithRetry wraps p so that transient failures are retried with exponential
// backoff. Configuration and other permanent errors return immediately.
func WithRetry(p LLMProvider, policy RetryPolicy) LLMProvider {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = DefaultRetryPolicy.InitialInterval
	}
	if policy.MaxInterval < policy.InitialInterval {
		policy.MaxInterval = policy.InitialInterval
	}
	return &retrying{next: p, policy: policy}
}

type retrying struct {
	next   LLMProvider
	policy RetryPolicy
}

func (r *retrying) ModelID() string { return r.next.ModelID() }
func (r *retrying) Dim() int        { return r.next.Dim() }

func (r *retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry(ctx, r.policy, "embed", func() ([]float32, error) {
		return r.next.Embed(ctx, text)
	})
}

func (r *retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retry(ctx, r.policy, "embed_batch", func() ([][]float32, error) {
		return r.next.EmbedBatch(ctx, texts)
	})
}

func (r *retrying) Generate(ctx context.Context, prompt string) (string, error) {
	return retry(ctx, r.policy, "generate", func() (string, error) {
		return r.next.Generate(ctx, prompt)
	})
}

func (r *retrying) GroundedGenerate(ctx context.Context, query string, passages []string, topK int) (GroundedAnswer, error) {
	return retry(ctx, r.policy, "grounded_generate", func() (GroundedAnswer, error) {
		return r.next.GroundedGenerate(ctx, query, passages, topK)
	})
}

func (r *retrying) HealthCheck(ctx context.Context) bool { return r.next.HealthCheck(ctx) }

func retry[T any](ctx context.Context, policy RetryPolicy, op string, fn func() (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1)), ctx)

	var out T
	err := backoff.RetryNotify(func() error {
		v, err := fn()
		if err == nil {
			out = v
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		log.Warn("provider call failed, retrying", "op", op, "wait", wait, "error", err)
	})
	return out, err
}
