package session

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/call"
	"github.com/Iron-Ham/cowork/internal/chat"
	"github.com/Iron-Ham/cowork/internal/comment"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/filelock"
	"github.com/Iron-Ham/cowork/internal/oplog"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
	"github.com/Iron-Ham/cowork/internal/review"
)

// membership records one user's place in one session.
type membership struct {
	userID     string
	permission permission.Level
	joinedAt   time.Time
}

// Session is one collaboration. All fields are guarded by mu; seq is atomic
// so read-locked paths can still number their envelopes.
type Session struct {
	mu sync.RWMutex

	id          string
	name        string
	mode        Mode
	ownerID     string
	settings    Settings
	startedAt   time.Time
	endedAt     time.Time
	active      bool
	members     []membership
	invited     []string
	sharedFiles []string

	locks    *filelock.Table
	ops      *oplog.Log
	feed     *activity.Feed
	comments *comment.Thread
	reviews  *review.Log
	chat     *chat.History
	call     *call.State

	seq     atomic.Uint64
	pending []event.Envelope

	// delivered is the Seq of the last envelope handed to the broadcaster.
	outMu     sync.Mutex
	outCond   *sync.Cond
	delivered uint64
}

func newSession(id, name string, mode Mode, settings Settings, feedCapacity int, now func() time.Time) *Session {
	s := &Session{
		id:        id,
		name:      name,
		mode:      mode,
		settings:  settings,
		startedAt: now(),
		active:    true,
		locks:     filelock.NewTable(filelock.WithClock(now)),
		ops:       oplog.NewLog(oplog.WithClock(now)),
		feed:      activity.NewFeed(feedCapacity, activity.WithClock(now)),
		comments:  comment.NewThread(id, comment.WithClock(now)),
		reviews:   review.NewLog(id, review.WithClock(now)),
		chat:      chat.NewHistory(id, chat.WithClock(now)),
		call:      call.NewState(id, call.WithClock(now)),
	}
	s.outCond = sync.NewCond(&s.outMu)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// envelope numbers a new envelope. Safe under either lock mode.
func (s *Session) envelope(kind event.Kind, origin string, payload any, at time.Time) event.Envelope {
	return event.Envelope{
		SessionID: s.id,
		Kind:      kind,
		Origin:    origin,
		Seq:       s.seq.Add(1),
		Payload:   payload,
		Timestamp: at,
	}
}

// awaitTurn blocks until every envelope numbered below seq was delivered.
func (s *Session) awaitTurn(seq uint64) {
	s.outMu.Lock()
	for s.delivered+1 < seq {
		s.outCond.Wait()
	}
	s.outMu.Unlock()
}

// finishTurn records seq as delivered and wakes the next envelope.
func (s *Session) finishTurn(seq uint64) {
	s.outMu.Lock()
	if seq > s.delivered {
		s.delivered = seq
	}
	s.outCond.Broadcast()
	s.outMu.Unlock()
}

// announceLocked queues an envelope for delivery after the write lock is released.
func (s *Session) announceLocked(kind event.Kind, origin string, payload any, at time.Time) {
	s.pending = append(s.pending, s.envelope(kind, origin, payload, at))
}

// drainLocked hands over the queued envelopes.
func (s *Session) drainLocked() []event.Envelope {
	out := s.pending
	s.pending = nil
	return out
}

// recordLocked appends to the activity feed.
func (s *Session) recordLocked(kind activity.Kind, userID string, payload map[string]any) {
	s.feed.Append(kind, userID, payload)
}

func (s *Session) memberLocked(userID string) (*membership, bool) {
	for i := range s.members {
		if s.members[i].userID == userID {
			return &s.members[i], true
		}
	}
	return nil, false
}

func (s *Session) hasMemberLocked(userID string) bool {
	_, ok := s.memberLocked(userID)
	return ok
}

func (s *Session) removeMemberLocked(userID string) {
	s.members = slices.DeleteFunc(s.members, func(m membership) bool { return m.userID == userID })
}

func (s *Session) memberIDsLocked() []string {
	ids := make([]string, len(s.members))
	for i, m := range s.members {
		ids[i] = m.userID
	}
	return ids
}

func (s *Session) isInvitedLocked(id Identity) bool {
	for _, c := range s.invited {
		if c == id.ID || (id.Contact != "" && c == id.Contact) {
			return true
		}
	}
	return false
}

func (s *Session) uninviteLocked(id Identity) {
	s.invited = slices.DeleteFunc(s.invited, func(c string) bool {
		return c == id.ID || (id.Contact != "" && c == id.Contact)
	})
}

func (s *Session) snapshotLocked(reg *presence.Registry) Snapshot {
	users := reg.Users(s.memberIDsLocked())
	byID := make(map[string]presence.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	snap := Snapshot{
		ID:           s.id,
		Name:         s.name,
		Mode:         s.mode,
		OwnerID:      s.ownerID,
		Active:       s.active,
		StartedAt:    s.startedAt,
		Settings:     s.settings,
		Participants: make([]Member, 0, len(s.members)),
		Invited:      slices.Clone(s.invited),
		SharedFiles:  slices.Clone(s.sharedFiles),
		Locks:        s.locks.Snapshot(),
		Seq:          s.seq.Load(),
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}
	for _, m := range s.members {
		u, ok := byID[m.userID]
		if !ok {
			u = presence.User{ID: m.userID, Name: m.userID, Status: presence.Offline}
		}
		snap.Participants = append(snap.Participants, Member{User: u, Permission: m.permission, JoinedAt: m.joinedAt})
	}
	if c, ok := s.call.Current(); ok {
		snap.Call = &c
	}
	return snap
}
