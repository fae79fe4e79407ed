package store

import (
	"context"
	"sync"
)

// Opener returns the store an operation should use. Gateways call it on
// their own execution context before every operation.
type Opener func(ctx context.Context) (*Store, error)

// SharedOpener opens the store described by cfg on first use and returns the
// same instance afterwards. A failed open is retried by the next call.
// The caller owns the opened store and closes it.
func SharedOpener(cfg Config) Opener {
	var (
		mu sync.Mutex
		s  *Store
	)
	return func(ctx context.Context) (*Store, error) {
		mu.Lock()
		defer mu.Unlock()
		if s != nil {
			return s, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, &Error{Op: "open", Err: err}
		}
		opened, err := Open(cfg)
		if err != nil {
			return nil, err
		}
		s = opened
		return s, nil
	}
}

// Static returns an Opener that always yields s.
func Static(s *Store) Opener {
	return func(context.Context) (*Store, error) {
		if s == nil {
			return nil, &Error{Op: "open", Err: ErrClosed}
		}
		return s, nil
	}
}
