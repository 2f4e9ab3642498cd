package filelock

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/cowork/internal/errors"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewTable(WithClock(func() time.Time { return fixed }))
}

func TestLock(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(tbl *Table)
		userID  string
		file    string
		wantErr error
	}{
		{
			name:   "lock unlocked file",
			userID: "alice",
			file:   "src/main.rs",
		},
		{
			name: "same holder is not re-entrant",
			setup: func(tbl *Table) {
				tbl.Lock("src/main.rs", "alice") //nolint:errcheck
			},
			userID:  "alice",
			file:    "src/main.rs",
			wantErr: errors.ErrAlreadyLocked,
		},
		{
			name: "conflict with different user",
			setup: func(tbl *Table) {
				tbl.Lock("src/main.rs", "alice") //nolint:errcheck
			},
			userID:  "bob",
			file:    "src/main.rs",
			wantErr: errors.ErrAlreadyLocked,
		},
		{
			name:    "empty file rejected",
			userID:  "alice",
			file:    "",
			wantErr: errors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTestTable(t)
			if tt.setup != nil {
				tt.setup(tbl)
			}

			lock, err := tbl.Lock(tt.file, tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lock() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lock() unexpected error: %v", err)
			}
			if lock.Holder != tt.userID || lock.File != tt.file {
				t.Errorf("Lock() = %+v", lock)
			}
			if lock.LockedAt.IsZero() {
				t.Error("LockedAt should be set")
			}
		})
	}
}

func TestLockErrorNamesHolder(t *testing.T) {
	tbl := newTestTable(t)
	if _, err := tbl.Lock("main.rs", "alice"); err != nil {
		t.Fatal(err)
	}

	_, err := tbl.Lock("main.rs", "bob")
	var lockErr *errors.LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("error %v should be a LockError", err)
	}
	if lockErr.Holder != "alice" || lockErr.Requester != "bob" || lockErr.File != "main.rs" {
		t.Errorf("LockError = %+v", lockErr)
	}
	if errors.KindOf(err) != errors.KindConflict {
		t.Errorf("KindOf() = %v, want conflict", errors.KindOf(err))
	}
}

func TestUnlock(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(tbl *Table)
		userID   string
		file     string
		wantErr  error
		wantKind errors.Kind
	}{
		{
			name: "holder unlocks",
			setup: func(tbl *Table) {
				tbl.Lock("a.go", "alice") //nolint:errcheck
			},
			userID: "alice",
			file:   "a.go",
		},
		{
			name:     "not locked",
			userID:   "alice",
			file:     "a.go",
			wantErr:  errors.ErrNotLocked,
			wantKind: errors.KindNotFound,
		},
		{
			name: "locked by other",
			setup: func(tbl *Table) {
				tbl.Lock("a.go", "alice") //nolint:errcheck
			},
			userID:   "bob",
			file:     "a.go",
			wantErr:  errors.ErrLockedByOther,
			wantKind: errors.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTestTable(t)
			if tt.setup != nil {
				tt.setup(tbl)
			}

			err := tbl.Unlock(tt.file, tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Unlock() error = %v, want %v", err, tt.wantErr)
				}
				if got := errors.KindOf(err); got != tt.wantKind {
					t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unlock() unexpected error: %v", err)
			}
			if tbl.IsLocked(tt.file) {
				t.Error("file should be unlocked")
			}
		})
	}
}

func TestReleaseAll(t *testing.T) {
	tbl := newTestTable(t)
	for _, f := range []string{"c.go", "a.go", "b.go"} {
		if _, err := tbl.Lock(f, "alice"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tbl.Lock("d.go", "bob"); err != nil {
		t.Fatal(err)
	}

	released := tbl.ReleaseAll("alice")
	want := []string{"a.go", "b.go", "c.go"}
	if fmt.Sprint(released) != fmt.Sprint(want) {
		t.Errorf("ReleaseAll() = %v, want %v", released, want)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
	if holder, _ := tbl.Holder("d.go"); holder != "bob" {
		t.Errorf("bob's lock should survive, holder = %q", holder)
	}
	if got := tbl.ReleaseAll("alice"); got != nil {
		t.Errorf("second ReleaseAll() = %v, want nil", got)
	}
}

func TestHolderAndHeldBy(t *testing.T) {
	tbl := newTestTable(t)
	if _, ok := tbl.Holder("x.go"); ok {
		t.Error("Holder() on unlocked file should report false")
	}

	tbl.Lock("z.go", "alice") //nolint:errcheck
	tbl.Lock("x.go", "alice") //nolint:errcheck
	tbl.Lock("y.go", "bob")   //nolint:errcheck

	if holder, ok := tbl.Holder("x.go"); !ok || holder != "alice" {
		t.Errorf("Holder() = %q, %v", holder, ok)
	}
	if got := tbl.HeldBy("alice"); fmt.Sprint(got) != "[x.go z.go]" {
		t.Errorf("HeldBy() = %v", got)
	}
	if got := tbl.HeldBy("carol"); len(got) != 0 {
		t.Errorf("HeldBy(carol) = %v, want empty", got)
	}

	snap := tbl.Snapshot()
	if len(snap) != 3 || snap[0].File != "x.go" || snap[2].File != "z.go" {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestConcurrentLocks(t *testing.T) {
	tbl := NewTable()
	const contenders = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := range contenders {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := tbl.Lock("shared.go", fmt.Sprintf("user-%d", id)); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

func TestConcurrentLockAndUnlock(t *testing.T) {
	tbl := NewTable()
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", id)
			file := fmt.Sprintf("file-%d.go", id)
			if _, err := tbl.Lock(file, user); err != nil {
				t.Errorf("Lock(%s) error = %v", file, err)
				return
			}
			if err := tbl.Unlock(file, user); err != nil {
				t.Errorf("Unlock(%s) error = %v", file, err)
			}
		}(i)
	}
	wg.Wait()

	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tbl.Len())
	}
}
