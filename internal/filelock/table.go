package filelock

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/cowork/internal/errors"
)

// Table holds the locks of one session, keyed by file path.
type Table struct {
	mu    sync.RWMutex
	locks map[string]Lock
	now   func() time.Time
}

// NewTable creates an empty lock table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		locks: make(map[string]Lock),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Lock grants userID an exclusive lock on file.
// Returns a LockError wrapping ErrAlreadyLocked if the file has any holder.
func (t *Table) Lock(file, userID string) (Lock, error) {
	if file == "" {
		return Lock{}, errors.NewValidationError("file must not be empty").WithField("file")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.locks[file]; ok {
		return Lock{}, errors.NewLockError(errors.ErrAlreadyLocked, file, existing.Holder, userID)
	}

	lock := Lock{File: file, Holder: userID, LockedAt: t.now()}
	t.locks[file] = lock
	return lock, nil
}

// Unlock releases userID's lock on file.
// Returns ErrNotLocked if the file has no lock, or ErrLockedByOther if
// someone else holds it.
func (t *Table) Unlock(file, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.locks[file]
	if !ok {
		return errors.NewLockError(errors.ErrNotLocked, file, "", userID).WithRetryable(false)
	}
	if existing.Holder != userID {
		return errors.NewLockError(errors.ErrLockedByOther, file, existing.Holder, userID)
	}
	delete(t.locks, file)
	return nil
}

// ReleaseAll removes every lock held by userID and returns the released
// paths sorted alphabetically. Returns nil if the user holds nothing.
func (t *Table) ReleaseAll(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var released []string
	for file, lock := range t.locks {
		if lock.Holder == userID {
			released = append(released, file)
		}
	}
	sort.Strings(released)

	for _, file := range released {
		delete(t.locks, file)
	}
	return released
}

// Holder returns the user holding file and true, or ("", false) if unlocked.
func (t *Table) Holder(file string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lock, ok := t.locks[file]
	if !ok {
		return "", false
	}
	return lock.Holder, true
}

// IsLocked returns true if any user holds file.
func (t *Table) IsLocked(file string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.locks[file]
	return ok
}

// HeldBy returns the files locked by userID, sorted alphabetically.
func (t *Table) HeldBy(userID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var files []string
	for file, lock := range t.locks {
		if lock.Holder == userID {
			files = append(files, file)
		}
	}
	sort.Strings(files)
	return files
}

// Snapshot returns a copy of every lock sorted by file.
func (t *Table) Snapshot() []Lock {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Lock, 0, len(t.locks))
	for _, lock := range t.locks {
		out = append(out, lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

// Len returns the number of held locks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.locks)
}
