package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on a key (a session ID) across processes.
// The session manager takes it around every load-advance-save cycle when the
// store is shared between replicas.
type DistributedLocker interface {
	// Lock blocks until the key is acquired or ctx is done.
	// The lock expires on its own after ttl if the holder dies.
	// The returned UnlockFunc MUST be called to release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
