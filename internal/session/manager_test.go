package session

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
	"github.com/Iron-Ham/cowork/internal/testutil"
)

type harness struct {
	m     *Manager
	rec   *testutil.RecordingBroadcaster
	clock *testutil.Clock
}

func newHarness(t *testing.T, modify func(*config.SessionConfig)) *harness {
	t.Helper()

	cfg := config.Default().Session
	if modify != nil {
		modify(&cfg)
	}
	clock := testutil.NewClock()
	rec := &testutil.RecordingBroadcaster{}
	n := 0
	m := NewManager(presence.NewRegistry(presence.WithClock(clock.Now)), cfg,
		WithBroadcaster(rec),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("s%d", n)
		}),
	)
	return &harness{m: m, rec: rec, clock: clock}
}

// create starts a session owned by alice.
func (h *harness) create(t *testing.T, o Overrides) string {
	t.Helper()
	snap, err := h.m.CreateSession(context.Background(), Identity{ID: "alice", Name: "Alice"}, ModeLiveShare, "pairing", o)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return snap.ID
}

func (h *harness) join(t *testing.T, sid, userID string, level permission.Level) {
	t.Helper()
	if err := h.m.JoinSession(context.Background(), sid, Identity{ID: userID}, level); err != nil {
		t.Fatalf("JoinSession(%s) error = %v", userID, err)
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func activityKinds(events []activity.Event) []activity.Kind {
	kinds := make([]activity.Kind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t, nil)

	snap, err := h.m.CreateSession(context.Background(), Identity{ID: "alice", Name: "Alice"}, "", "", Overrides{
		MaxParticipants: intPtr(3),
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if snap.ID != "s1" {
		t.Errorf("ID = %q, want s1", snap.ID)
	}
	if snap.Mode != ModeLiveShare {
		t.Errorf("Mode = %q, want default %q", snap.Mode, ModeLiveShare)
	}
	if snap.Name != "Alice's session" {
		t.Errorf("Name = %q", snap.Name)
	}
	if !snap.Active || snap.EndedAt != nil {
		t.Errorf("new session should be active without EndedAt: %+v", snap)
	}
	if snap.Settings.MaxParticipants != 3 {
		t.Errorf("MaxParticipants = %d, want override 3", snap.Settings.MaxParticipants)
	}
	if !snap.Settings.AllowVoiceVideo {
		t.Error("AllowVoiceVideo should keep the configured default")
	}
	if len(snap.Participants) != 1 {
		t.Fatalf("Participants = %d, want 1", len(snap.Participants))
	}
	owner := snap.Participants[0]
	if owner.User.ID != "alice" || owner.Permission != permission.Owner {
		t.Errorf("owner = %+v", owner)
	}
	if owner.User.Status != presence.Online {
		t.Errorf("owner status = %q, want online", owner.User.Status)
	}

	events, _ := h.m.Activity(snap.ID)
	if len(events) != 1 || events[0].Kind != activity.UserJoined || events[0].Payload["role"] != "owner" {
		t.Errorf("activity = %+v, want one owner user_joined", events)
	}
	if got := h.rec.Kinds(); !slices.Equal(got, []event.Kind{event.SessionCreated}) {
		t.Errorf("broadcast kinds = %v", got)
	}
}

func TestCreateSession_Invalid(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		owner Identity
		mode  Mode
		o     Overrides
	}{
		{"unknown mode", Identity{ID: "alice"}, "karaoke", Overrides{}},
		{"empty owner", Identity{}, ModeLiveShare, Overrides{}},
		{"zero participants", Identity{ID: "alice"}, ModeLiveShare, Overrides{MaxParticipants: intPtr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.m.CreateSession(ctx, tt.owner, tt.mode, "", tt.o)
			if errors.KindOf(err) != errors.KindInvalid {
				t.Errorf("KindOf(%v) = %v, want invalid", err, errors.KindOf(err))
			}
		})
	}
	if got := len(h.m.List()); got != 0 {
		t.Errorf("List() = %d sessions, want 0", got)
	}
}

func TestJoinSession_ThirdJoinDeniedWhenFull(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.create(t, Overrides{MaxParticipants: intPtr(2)})

	h.join(t, sid, "bob", permission.Editor)

	err := h.m.JoinSession(context.Background(), sid, Identity{ID: "carol"}, permission.Editor)
	if !errors.Is(err, errors.ErrSessionFull) {
		t.Fatalf("third join error = %v, want ErrSessionFull", err)
	}
	if errors.KindOf(err) != errors.KindPolicyDenied {
		t.Errorf("KindOf = %v, want policy_denied", errors.KindOf(err))
	}

	snap, _ := h.m.Get(sid)
	if len(snap.Participants) != 2 {
		t.Errorf("Participants = %d, want 2", len(snap.Participants))
	}
	if _, ok := snap.Member("carol"); ok {
		t.Error("carol should not be a participant")
	}
}

func TestJoinSession_Errors(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{})
	h.join(t, sid, "bob", "")

	ended := h.create(t, Overrides{})
	if err := h.m.EndSession(ctx, ended, "alice"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	tests := []struct {
		name     string
		session  string
		user     string
		sentinel error
		kind     errors.Kind
	}{
		{"unknown session", "nope", "carol", errors.ErrSessionNotFound, errors.KindNotFound},
		{"inactive session", ended, "carol", errors.ErrSessionInactive, errors.KindInvalidState},
		{"already joined", sid, "bob", errors.ErrAlreadyJoined, errors.KindConflict},
		{"owner rejoins", sid, "alice", errors.ErrAlreadyJoined, errors.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.m.JoinSession(ctx, tt.session, Identity{ID: tt.user}, permission.Viewer)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v", err, tt.sentinel)
			}
			if got := errors.KindOf(err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestJoinSession_PermissionLevels(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.create(t, Overrides{})

	tests := []struct {
		user      string
		requested permission.Level
		want      permission.Level
	}{
		{"bob", "", permission.Viewer},
		{"carol", "admin", permission.Viewer},
		{"dave", permission.Owner, permission.Editor},
		{"erin", permission.Commenter, permission.Commenter},
	}

	for _, tt := range tests {
		h.join(t, sid, tt.user, tt.requested)
	}

	snap, _ := h.m.Get(sid)
	for _, tt := range tests {
		member, ok := snap.Member(tt.user)
		if !ok {
			t.Fatalf("%s missing from roster", tt.user)
		}
		if member.Permission != tt.want {
			t.Errorf("%s permission = %q, want %q", tt.user, member.Permission, tt.want)
		}
	}
	if snap.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want alice", snap.OwnerID)
	}
}

func TestJoinSession_OwnerRejoinsAsOwner(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{RequireApproval: boolPtr(true)})
	if err := h.m.InviteContact(ctx, sid, "alice", "bob"); err != nil {
		t.Fatal(err)
	}
	h.join(t, sid, "bob", permission.Editor)

	if err := h.m.LeaveSession(ctx, sid, "alice"); err != nil {
		t.Fatal(err)
	}
	h.join(t, sid, "alice", "")

	snap, _ := h.m.Get(sid)
	member, ok := snap.Member("alice")
	if !ok || member.Permission != permission.Owner {
		t.Fatalf("alice rejoined as %+v, want owner", member)
	}
	if err := h.m.EndSession(ctx, sid, "alice"); err != nil {
		t.Fatalf("EndSession(alice) after rejoin error = %v", err)
	}
}

func TestJoinSession_RequireApproval(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{RequireApproval: boolPtr(true)})

	err := h.m.JoinSession(ctx, sid, Identity{ID: "bob", Contact: "bob@example.com"}, permission.Editor)
	if !errors.Is(err, errors.ErrApprovalRequired) {
		t.Fatalf("uninvited join error = %v, want ErrApprovalRequired", err)
	}

	if err := h.m.InviteContact(ctx, sid, "alice", "bob@example.com"); err != nil {
		t.Fatalf("InviteContact() error = %v", err)
	}
	snap, _ := h.m.Get(sid)
	if !slices.Equal(snap.Invited, []string{"bob@example.com"}) {
		t.Errorf("Invited = %v", snap.Invited)
	}

	if err := h.m.JoinSession(ctx, sid, Identity{ID: "bob", Contact: "bob@example.com"}, permission.Editor); err != nil {
		t.Fatalf("invited join error = %v", err)
	}
	snap, _ = h.m.Get(sid)
	if len(snap.Invited) != 0 {
		t.Errorf("Invited = %v, want contact removed after join", snap.Invited)
	}
}

func TestJoinSession_ActivityAndChat(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.create(t, Overrides{})
	h.rec.Reset()

	if err := h.m.JoinSession(context.Background(), sid, Identity{ID: "bob", Name: "Bob"}, permission.Editor); err != nil {
		t.Fatal(err)
	}

	events, _ := h.m.Activity(sid)
	last := events[len(events)-1]
	if last.Kind != activity.UserJoined || last.UserID != "bob" {
		t.Errorf("last activity = %+v", last)
	}

	msgs, _ := h.m.Messages(sid, 0, 0)
	if len(msgs) != 2 || msgs[1].Content != "Bob joined the session" || !msgs[1].IsSystem() {
		t.Errorf("messages = %+v", msgs)
	}

	if got := h.rec.Kinds(); !slices.Equal(got, []event.Kind{event.UserJoined, event.ChatMessage}) {
		t.Errorf("broadcast kinds = %v", got)
	}
}

func TestLeaveSession_ReleasesLocks(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{})
	h.join(t, sid, "bob", permission.Editor)

	for _, file := range []string{"b.go", "a.go"} {
		if _, err := h.m.LockFile(ctx, sid, file, "bob"); err != nil {
			t.Fatalf("LockFile(%s) error = %v", file, err)
		}
	}
	if _, err := h.m.LockFile(ctx, sid, "c.go", "alice"); err != nil {
		t.Fatal(err)
	}
	h.rec.Reset()

	if err := h.m.LeaveSession(ctx, sid, "bob"); err != nil {
		t.Fatalf("LeaveSession() error = %v", err)
	}

	locks, _ := h.m.Locks(sid)
	if len(locks) != 1 || locks[0].File != "c.go" {
		t.Errorf("Locks() = %+v, want only alice's c.go", locks)
	}

	// Another participant can now take the released file.
	if _, err := h.m.LockFile(ctx, sid, "a.go", "alice"); err != nil {
		t.Errorf("LockFile after leave error = %v", err)
	}

	var unlocked []string
	for _, env := range h.rec.Envelopes() {
		if env.Kind == event.FileUnlocked {
			unlocked = append(unlocked, env.Payload.(map[string]any)["file"].(string))
		}
	}
	if !slices.Equal(unlocked, []string{"a.go", "b.go"}) {
		t.Errorf("file_unlocked for %v, want [a.go b.go]", unlocked)
	}

	events, _ := h.m.Activity(sid)
	kinds := activityKinds(events)
	if !slices.Contains(kinds, activity.UserLeft) {
		t.Errorf("activity kinds = %v, want user_left", kinds)
	}

	snap, _ := h.m.Get(sid)
	if _, ok := snap.Member("bob"); ok {
		t.Error("bob should no longer be a participant")
	}
	if u, _ := h.m.Presence().Get("bob"); u.Status != presence.Offline {
		t.Errorf("bob status = %q, want offline after leaving his only session", u.Status)
	}
}

func TestLeaveSession_NotInSession(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.create(t, Overrides{})

	err := h.m.LeaveSession(context.Background(), sid, "mallory")
	if !errors.Is(err, errors.ErrUserNotInSession) {
		t.Fatalf("error = %v, want ErrUserNotInSession", err)
	}
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("KindOf = %v, want not_found", errors.KindOf(err))
	}
}

func TestLeaveSession_OwnerLastEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{})
	h.join(t, sid, "bob", permission.Editor)

	// The owner leaving while others remain keeps the session alive.
	if err := h.m.LeaveSession(ctx, sid, "alice"); err != nil {
		t.Fatal(err)
	}
	snap, _ := h.m.Get(sid)
	if !snap.Active {
		t.Fatal("session should stay active while bob remains")
	}

	h2 := newHarness(t, nil)
	solo := h2.create(t, Overrides{})
	h2.clock.Advance(time.Minute)
	if err := h2.m.LeaveSession(ctx, solo, "alice"); err != nil {
		t.Fatal(err)
	}
	snap, _ = h2.m.Get(solo)
	if snap.Active {
		t.Error("session should end when the owner leaves an empty roster")
	}
	if snap.EndedAt == nil || !snap.EndedAt.Equal(h2.clock.Now()) {
		t.Errorf("EndedAt = %v, want %v", snap.EndedAt, h2.clock.Now())
	}
	if _, ok := h2.rec.Last(event.SessionEnded); !ok {
		t.Error("expected a session_ended broadcast")
	}
}

func TestEndSession(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{})
	h.join(t, sid, "bob", permission.Editor)
	if _, err := h.m.LockFile(ctx, sid, "main.go", "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.m.StartCall(ctx, sid, "alice", true, false); err != nil {
		t.Fatal(err)
	}

	if err := h.m.EndSession(ctx, sid, "bob"); !errors.Is(err, errors.ErrPermissionDenied) {
		t.Fatalf("editor EndSession error = %v, want ErrPermissionDenied", err)
	}
	if err := h.m.EndSession(ctx, sid, "alice"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	snap, _ := h.m.Get(sid)
	if snap.Active || snap.EndedAt == nil {
		t.Errorf("session should be inactive with EndedAt: %+v", snap)
	}
	if len(snap.Participants) != 0 {
		t.Errorf("Participants = %d, want 0", len(snap.Participants))
	}
	if len(snap.Locks) != 0 {
		t.Errorf("Locks = %+v, want none", snap.Locks)
	}
	if snap.Call != nil {
		t.Errorf("Call = %+v, want stopped", snap.Call)
	}

	err := h.m.EndSession(ctx, sid, "alice")
	if !errors.Is(err, errors.ErrSessionInactive) {
		t.Errorf("second EndSession error = %v, want ErrSessionInactive", err)
	}
	if ids := h.m.SessionsFor("bob"); len(ids) != 0 {
		t.Errorf("SessionsFor(bob) = %v, want none", ids)
	}
}

func TestBroadcastFailureDoesNotFailMutation(t *testing.T) {
	h := newHarness(t, nil)
	sid := h.create(t, Overrides{})
	h.rec.FailWith(errors.New("transport down"))

	if err := h.m.JoinSession(context.Background(), sid, Identity{ID: "bob"}, permission.Editor); err != nil {
		t.Fatalf("JoinSession() error = %v, want broadcast failure ignored", err)
	}
	snap, _ := h.m.Get(sid)
	if _, ok := snap.Member("bob"); !ok {
		t.Error("bob should have joined despite the failed broadcast")
	}
}

func TestEnvelopeSequence(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{})
	h.join(t, sid, "bob", permission.Editor)
	if _, err := h.m.LockFile(ctx, sid, "a.go", "bob"); err != nil {
		t.Fatal(err)
	}

	envs := h.rec.Envelopes()
	for i, env := range envs {
		if env.SessionID != sid {
			t.Errorf("envelope %d session = %q", i, env.SessionID)
		}
		if env.Seq != uint64(i+1) {
			t.Errorf("envelope %d (%s) seq = %d, want %d", i, env.Kind, env.Seq, i+1)
		}
	}
	snap, _ := h.m.Get(sid)
	if snap.Seq != uint64(len(envs)) {
		t.Errorf("snapshot Seq = %d, want %d", snap.Seq, len(envs))
	}
}

func TestListAndSessionsFor(t *testing.T) {
	h := newHarness(t, nil)
	first := h.create(t, Overrides{})
	second := h.create(t, Overrides{})
	h.join(t, second, "bob", permission.Viewer)

	list := h.m.List()
	if len(list) != 2 || list[0].ID != first || list[1].ID != second {
		t.Errorf("List() = %+v", list)
	}
	if got := h.m.SessionsFor("alice"); !slices.Equal(got, []string{first, second}) {
		t.Errorf("SessionsFor(alice) = %v", got)
	}
	if got := h.m.SessionsFor("bob"); !slices.Equal(got, []string{second}) {
		t.Errorf("SessionsFor(bob) = %v", got)
	}
	if _, err := h.m.Get("missing"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestActivityFeedBounded(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sid := h.create(t, Overrides{})

	for i := range 150 {
		if err := h.m.OpenFile(ctx, sid, fmt.Sprintf("f%03d.go", i), "alice"); err != nil {
			t.Fatal(err)
		}
	}

	events, _ := h.m.Activity(sid)
	if len(events) != activity.DefaultCapacity {
		t.Fatalf("Activity() = %d events, want %d", len(events), activity.DefaultCapacity)
	}
	if got := events[0].Payload["file"]; got != "f050.go" {
		t.Errorf("oldest retained = %v, want f050.go", got)
	}
	if got := events[len(events)-1].Payload["file"]; got != "f149.go" {
		t.Errorf("newest = %v, want f149.go", got)
	}
}

func TestPermissionEnforcement(t *testing.T) {
	ctx := context.Background()

	t.Run("enforced", func(t *testing.T) {
		h := newHarness(t, nil)
		sid := h.create(t, Overrides{})
		h.join(t, sid, "vic", permission.Viewer)

		_, err := h.m.LockFile(ctx, sid, "main.go", "vic")
		if !errors.Is(err, errors.ErrPermissionDenied) {
			t.Fatalf("viewer LockFile error = %v, want ErrPermissionDenied", err)
		}
		var permErr *errors.PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("error %T is not a PermissionError", err)
		}
	})

	t.Run("trusted outer layer", func(t *testing.T) {
		h := newHarness(t, func(c *config.SessionConfig) { c.EnforcePermissions = false })
		sid := h.create(t, Overrides{})
		h.join(t, sid, "vic", permission.Viewer)

		if _, err := h.m.LockFile(ctx, sid, "main.go", "vic"); err != nil {
			t.Fatalf("LockFile without enforcement error = %v", err)
		}
	})
}
