// Package locks implements the Lock Table (spec §4.C): an exclusive
// path -> (owner, expiry) registry. Expiry is lazy — there is no sweeper;
// a lock past its TTL is simply treated as absent the next time anyone
// looks at it.
package locks

import (
	"sync"
	"time"

	"github.com/kolabhq/tilepad/pkg/model"
)

// Table is a single-writer/many-reader exclusive lock registry.
type Table struct {
	mu    sync.RWMutex
	locks map[string]model.PathLock
	now   func() time.Time
}

// New creates an empty lock table.
func New() *Table {
	return &Table{
		locks: make(map[string]model.PathLock),
		now:   time.Now,
	}
}

// Acquire attempts to take the exclusive lock on path for userID. A live
// lock held by a different user rejects with ok=false and the current
// owner's userID. A live lock held by the same user renews it. ttl<=0 is
// not an error: the lock is recorded and ok=true is returned, but it is
// already expired, matching the "no error path" shape of this component.
func (t *Table) Acquire(path, userID string, ttl time.Duration) (ok bool, heldBy string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if existing, found := t.locks[path]; found && t.isLive(existing, now) {
		if existing.UserID != userID {
			return false, existing.UserID
		}
	}

	t.locks[path] = model.PathLock{
		Path:       path,
		UserID:     userID,
		AcquiredAt: now,
		TTL:        ttl,
	}
	return true, userID
}

// Release removes the lock on path if it is live and owned by userID.
// Returns false if there was no live lock, or it was owned by someone else.
func (t *Table) Release(path, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, found := t.locks[path]
	if !found || !t.isLive(existing, t.now()) || existing.UserID != userID {
		return false
	}
	delete(t.locks, path)
	return true
}

// Check returns the current live owner of path, or ok=false if unlocked
// or expired.
func (t *Table) Check(path string) (owner string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	existing, found := t.locks[path]
	if !found || !t.isLive(existing, t.now()) {
		return "", false
	}
	return existing.UserID, true
}

func (t *Table) isLive(l model.PathLock, now time.Time) bool {
	return now.Sub(l.AcquiredAt) < l.TTL
}
