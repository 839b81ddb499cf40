package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type RetryOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// ConnectRetryOptions is used for the startup connections to Redis and RabbitMQ.
func ConnectRetryOptions() RetryOptions {
	return RetryOptions{
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  3 * time.Minute,
		MaxRetries:      10,
	}
}

// WithRetry runs operation with exponential backoff until it succeeds, the retries
// are exhausted, or ctx is done.
func WithRetry[T any](ctx context.Context, name string, operation func() (T, error), opts RetryOptions) (T, error) {
	var result T

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMaxInterval(opts.MaxInterval),
		backoff.WithMaxElapsedTime(opts.MaxElapsedTime),
	), opts.MaxRetries)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		var err error
		result, err = operation()
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		Logger.Warn("connection attempt failed",
			zap.String("target", name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
			zap.Error(err))
	})
	return result, err
}
