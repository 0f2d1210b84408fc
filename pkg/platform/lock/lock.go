// Package lock provides best-effort exclusive leases for background passes.
//
// A lease guards a whole pass so that only one replica sweeps at a time.
// Per-entity correctness does not depend on it: every entity is still
// re-checked inside its own transaction.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when another holder owns the lease.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives a lease back. Releasing an expired or stolen lease is a no-op.
type Release func(ctx context.Context) error

// Locker hands out time-bounded leases keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}
