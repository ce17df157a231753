// Package lock provides per-key single-flight guards. A held key rejects
// further acquisitions until released.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned when the key is already held.
var ErrHeld = errors.New("lock already held")

// Release frees a held key. Calling it more than once is safe.
type Release func()

// Manager hands out exclusive per-key locks.
type Manager interface {
	// TryAcquire takes the key or fails immediately with ErrHeld.
	TryAcquire(ctx context.Context, key string) (Release, error)
}

// Acquire polls TryAcquire until the key is obtained or ctx is done.
func Acquire(ctx context.Context, m Manager, key string, interval time.Duration) (Release, error) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	for {
		release, err := m.TryAcquire(ctx, key)
		if !errors.Is(err, ErrHeld) {
			return release, err
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
