package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/cowork/internal/broadcast"
	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
)

func TestConcurrentEdits_VersionsAreGapless(t *testing.T) {
	h := newHarness(t, func(c *config.SessionConfig) { c.MaxParticipants = 20 })
	ctx := context.Background()
	sid := h.create(t, Overrides{})

	const users, perUser = 8, 25
	for i := range users {
		h.join(t, sid, fmt.Sprintf("u%d", i), permission.Editor)
	}

	var wg sync.WaitGroup
	for i := range users {
		userID := fmt.Sprintf("u%d", i)
		wg.Go(func() {
			for range perUser {
				if _, err := h.m.ApplyEdit(ctx, sid, insert(userID, "shared.txt", "x")); err != nil {
					t.Errorf("ApplyEdit(%s) error = %v", userID, err)
					return
				}
			}
		})
	}
	wg.Wait()

	ops := mustOps(t, h, sid, "shared.txt")
	if len(ops) != users*perUser {
		t.Fatalf("Operations() = %d, want %d", len(ops), users*perUser)
	}
	for i, op := range ops {
		if op.Version != i {
			t.Fatalf("ops[%d].Version = %d, want %d", i, op.Version, i)
		}
	}
}

func TestConcurrentLocks_SingleWinner(t *testing.T) {
	h := newHarness(t, func(c *config.SessionConfig) { c.MaxParticipants = 20 })
	ctx := context.Background()
	sid := h.create(t, Overrides{})

	const users = 10
	for i := range users {
		h.join(t, sid, fmt.Sprintf("u%d", i), permission.Editor)
	}

	var winners, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := range users {
		userID := fmt.Sprintf("u%d", i)
		wg.Go(func() {
			_, err := h.m.LockFile(ctx, sid, "contested.go", userID)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, errors.ErrAlreadyLocked):
				conflicts.Add(1)
			default:
				t.Errorf("LockFile(%s) error = %v", userID, err)
			}
		})
	}
	wg.Wait()

	if winners.Load() != 1 || conflicts.Load() != users-1 {
		t.Errorf("winners = %d, conflicts = %d", winners.Load(), conflicts.Load())
	}
}

func TestConcurrentSessionsAndCursors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sessions := make([]string, 4)
	for i := range sessions {
		sessions[i] = h.create(t, Overrides{})
	}

	var wg sync.WaitGroup
	for i, sid := range sessions {
		userID := fmt.Sprintf("u%d", i)
		h.join(t, sid, userID, permission.Editor)
		wg.Go(func() {
			for line := range 50 {
				if _, err := h.m.UpdateCursor(ctx, sid, userID, presence.CursorUpdate{
					File: "main.go",
					At:   presence.Position{Line: line},
				}); err != nil {
					t.Errorf("UpdateCursor() error = %v", err)
					return
				}
			}
		})
		wg.Go(func() {
			for j := range 20 {
				if _, err := h.m.ApplyEdit(ctx, sid, insert("alice", fmt.Sprintf("f%d.go", j%3), "x")); err != nil {
					t.Errorf("ApplyEdit() error = %v", err)
					return
				}
			}
		})
	}
	wg.Wait()

	seen := make(map[string]map[uint64]bool)
	for _, env := range h.rec.Envelopes() {
		if seen[env.SessionID] == nil {
			seen[env.SessionID] = make(map[uint64]bool)
		}
		if seen[env.SessionID][env.Seq] {
			t.Fatalf("session %s reused seq %d", env.SessionID, env.Seq)
		}
		seen[env.SessionID][env.Seq] = true
	}
	for _, sid := range sessions {
		snap, _ := h.m.Get(sid)
		if got := uint64(len(seen[sid])); got != snap.Seq {
			t.Errorf("session %s: %d envelopes, Seq = %d", sid, got, snap.Seq)
		}
	}
}

func TestDelivery_FollowsSeqUnderContention(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	var (
		mu   sync.Mutex
		seqs []uint64
		hold sync.Once
	)
	b := broadcast.Func(func(_ context.Context, env event.Envelope) error {
		if env.Kind == event.FileLocked && env.Origin == "alice" {
			hold.Do(func() {
				close(entered)
				<-release
			})
		}
		mu.Lock()
		seqs = append(seqs, env.Seq)
		mu.Unlock()
		return nil
	})

	m := NewManager(presence.NewRegistry(), config.Default().Session, WithBroadcaster(b))
	snap, err := m.CreateSession(ctx, Identity{ID: "alice", Name: "Alice"}, ModeLiveShare, "", Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.JoinSession(ctx, snap.ID, Identity{ID: "bob"}, permission.Editor); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		if _, err := m.LockFile(ctx, snap.ID, "a.go", "alice"); err != nil {
			t.Errorf("LockFile(alice) error = %v", err)
		}
	})
	<-entered

	bobDone := make(chan struct{})
	wg.Go(func() {
		defer close(bobDone)
		if _, err := m.LockFile(ctx, snap.ID, "b.go", "bob"); err != nil {
			t.Errorf("LockFile(bob) error = %v", err)
		}
	})

	select {
	case <-bobDone:
		t.Error("bob's envelope was delivered before alice's earlier one")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("delivered seqs = %v, want 1..%d in order", seqs, len(seqs))
		}
	}
}
