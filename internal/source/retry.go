package source

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"notesbot/internal/model"
)

type retryAdapter struct {
	inner      Adapter
	maxRetries uint64
	base       time.Duration
}

// WithRetry wraps an adapter so transient failures are retried with capped
// exponential backoff before surfacing. Permanent failures are returned
// immediately.
func WithRetry(a Adapter, maxRetries uint64) Adapter {
	return &retryAdapter{inner: a, maxRetries: maxRetries, base: 500 * time.Millisecond}
}

func (r *retryAdapter) Platform() model.Platform { return r.inner.Platform() }

func (r *retryAdapter) Fetch(ctx context.Context, identifier string, since time.Time) ([]model.Note, error) {
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.base))

	var notes []model.Note
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		notes, err = r.inner.Fetch(ctx, identifier, since)
		if err != nil && !IsPermanent(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}
