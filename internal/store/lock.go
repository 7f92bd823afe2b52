package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	recallerrors "github.com/recall-db/recall/internal/errors"
)

const (
	lockPollInterval = 50 * time.Millisecond
	lockDeadline     = 5 * time.Second
)

// Lock guards a store file against concurrent processes. Readers take a
// shared lock, writers take an exclusive lock; both poll for up to
// lockDeadline before giving up.
type Lock struct {
	fl   *flock.Flock
	path string
}

// NewLock returns a lock keyed on the store's path. SQLite's own file isn't
// used for the OS-level lock because compact/import truncate-and-replace it;
// a stable sidecar path keeps the lock valid across those operations.
func NewLock(storePath string) *Lock {
	return &Lock{fl: flock.New(storePath + ".lock"), path: storePath}
}

// AcquireShared blocks until a shared (read) lock is obtained or the
// deadline elapses, returning an E_STORE_LOCKED error on timeout.
func (l *Lock) AcquireShared(ctx context.Context) error {
	return l.acquire(ctx, l.fl.TryRLock)
}

// AcquireExclusive blocks until an exclusive (write) lock is obtained or
// the deadline elapses, returning an E_STORE_LOCKED error on timeout.
func (l *Lock) AcquireExclusive(ctx context.Context) error {
	return l.acquire(ctx, l.fl.TryLock)
}

func (l *Lock) acquire(ctx context.Context, try func() (bool, error)) error {
	deadline := time.Now().Add(lockDeadline)
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := try()
		if err != nil {
			return fmt.Errorf("store: lock attempt failed: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return recallerrors.Locked(l.path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release drops whichever lock is currently held.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
