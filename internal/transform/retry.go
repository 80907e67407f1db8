package transform

import (
	"context"
	"errors"
	"time"

	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/state"
)

// Retrying repeats failed calls of the wrapped Service with exponential
// backoff. Only retryable ServiceErrors are repeated.
type Retrying struct {
	Service    Service
	MaxRetries int
	BaseDelay  time.Duration
}

// WithRetry wraps svc. maxRetries <= 0 returns svc unchanged.
func WithRetry(svc Service, maxRetries int) Service {
	if maxRetries <= 0 {
		return svc
	}
	return &Retrying{Service: svc, MaxRetries: maxRetries, BaseDelay: time.Second}
}

func (r *Retrying) Analyze(ctx context.Context, image state.Snapshot) (string, error) {
	return retry(ctx, r, "analyze", func() (string, error) {
		return r.Service.Analyze(ctx, image)
	})
}

func (r *Retrying) Generate(ctx context.Context, description string) (string, error) {
	return retry(ctx, r, "generate", func() (string, error) {
		return r.Service.Generate(ctx, description)
	})
}

func retry(ctx context.Context, r *Retrying, op string, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.BaseDelay << (attempt - 1)
			logging.Logger().Warn("[transform] retrying", "op", op, "attempt", attempt, "delay", delay, "err", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			break
		}
	}
	return "", lastErr
}

func shouldRetry(err error) bool {
	if isContextErr(err) {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		if isContextErr(se.Err) {
			return false
		}
		return se.Retryable()
	}
	return false
}
