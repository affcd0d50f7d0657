package generation

import (
	"context"
	"errors"
	"time"
)

// TimeoutBackend bounds every call to the wrapped backend. The call runs on
// its own goroutine; once the deadline passes the caller gets ErrTimeout and
// whatever the backend eventually returns is dropped.
type TimeoutBackend struct {
	next    Backend
	timeout time.Duration
}

// WithTimeout wraps next so that calls fail with ErrTimeout after d.
// A non-positive d disables the bound.
func WithTimeout(next Backend, d time.Duration) Backend {
	if d <= 0 {
		return next
	}
	return &TimeoutBackend{next: next, timeout: d}
}

func (b *TimeoutBackend) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	type result struct {
		text string
		err  error
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	// Buffered so the goroutine never blocks after we stop listening.
	done := make(chan result, 1)
	go func() {
		text, err := b.next.Generate(callCtx, prompt, cfg)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return r.text, upstream("backend", r.err)
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", upstream("backend", err)
		}
		return "", ErrTimeout
	}
}
