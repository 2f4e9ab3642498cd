package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/broadcast"
	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/logging"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
)

// Manager owns every session of the process. It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string

	presence    *presence.Registry
	cfg         config.SessionConfig
	broadcaster broadcast.Broadcaster
	logger      *logging.Logger
	now         func() time.Time
	newID       func() string
}

// NewManager creates a Manager. Users are registered in reg; cfg supplies the
// default settings and policy switches for new sessions.
func NewManager(reg *presence.Registry, cfg config.SessionConfig, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		presence:    reg,
		cfg:         cfg,
		broadcaster: broadcast.Nop{},
		logger:      logging.NopLogger(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("session")
	return m
}

// Presence returns the presence registry the manager registers users in.
func (m *Manager) Presence() *presence.Registry {
	return m.presence
}

// CreateSession starts an active session with owner as its only participant.
// An empty mode uses the configured default.
func (m *Manager) CreateSession(ctx context.Context, owner Identity, mode Mode, name string, o Overrides) (Snapshot, error) {
	const op = "create"

	if mode == "" {
		mode = Mode(m.cfg.DefaultMode)
	}
	if !mode.IsValid() {
		return Snapshot{}, errors.NewValidationError("unknown session mode").WithField("mode").WithValue(mode)
	}
	settings := DefaultSettings(m.cfg).Apply(o)
	if settings.MaxParticipants < 1 {
		return Snapshot{}, errors.NewValidationError("max participants must be at least 1").
			WithField("max_participants").WithValue(settings.MaxParticipants)
	}
	user, err := m.presence.Register(owner.ID, owner.Name, owner.Contact)
	if err != nil {
		return Snapshot{}, errors.NewSessionError(op, err).WithUserID(owner.ID)
	}
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%s's session", user.Name)
	}

	s := newSession(m.newID(), name, mode, settings, m.cfg.ActivityCapacity, m.now)
	now := m.now()

	s.mu.Lock()
	s.ownerID = owner.ID
	s.members = append(s.members, membership{userID: owner.ID, permission: permission.Owner, joinedAt: now})
	s.recordLocked(activity.UserJoined, owner.ID, map[string]any{"role": string(permission.Owner)})
	s.chat.System(fmt.Sprintf("%s started the session", user.Name))
	s.announceLocked(event.SessionCreated, owner.ID, map[string]any{
		"name":     name,
		"mode":     string(mode),
		"settings": settings,
	}, now)
	snap := s.snapshotLocked(m.presence)
	envs := s.drainLocked()
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.id] = s
	m.order = append(m.order, s.id)
	m.mu.Unlock()

	m.logger.WithSession(s.id).Info("session created",
		"owner", owner.ID,
		"mode", string(mode),
		"max_participants", settings.MaxParticipants,
	)
	m.emit(ctx, s, envs)
	return snap, nil
}

// JoinSession adds ident to the session with the requested permission level.
// An empty or unknown level joins as viewer. Only the session's owner may
// hold owner level; anyone else asking for it is downgraded to editor.
func (m *Manager) JoinSession(ctx context.Context, sessionID string, ident Identity, level permission.Level) error {
	const op = "join"

	if ident.ID == "" {
		return errors.NewValidationError("user id must not be empty").WithField("id")
	}
	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	switch {
	case ident.ID == s.ownerID:
		level = permission.Owner
	case level == permission.Owner:
		level = permission.Editor
	case !level.IsValid():
		level = permission.Viewer
	}

	fail := func(cause error) error {
		s.mu.Unlock()
		return errors.NewSessionError(op, cause).WithSessionID(sessionID).WithUserID(ident.ID)
	}
	switch {
	case !s.active:
		return fail(errors.ErrSessionInactive)
	case s.hasMemberLocked(ident.ID):
		return fail(errors.ErrAlreadyJoined)
	case len(s.members) >= s.settings.MaxParticipants:
		return fail(errors.ErrSessionFull)
	case s.settings.RequireApproval && ident.ID != s.ownerID && !s.isInvitedLocked(ident):
		return fail(errors.ErrApprovalRequired)
	}

	user, err := m.presence.Register(ident.ID, ident.Name, ident.Contact)
	if err != nil {
		return fail(err)
	}
	now := m.now()
	s.members = append(s.members, membership{userID: ident.ID, permission: level, joinedAt: now})
	s.uninviteLocked(ident)
	s.recordLocked(activity.UserJoined, ident.ID, map[string]any{"permission": string(level)})
	msg := s.chat.System(fmt.Sprintf("%s joined the session", user.Name))
	s.announceLocked(event.UserJoined, ident.ID, map[string]any{
		"user":       user,
		"permission": string(level),
	}, now)
	s.announceLocked(event.ChatMessage, chatSystemOrigin, msg, now)
	envs := s.drainLocked()
	s.mu.Unlock()

	m.logger.WithSession(sessionID).WithUser(ident.ID).Info("user joined", "permission", string(level))
	m.emit(ctx, s, envs)
	return nil
}

// LeaveSession removes userID from the session, releasing every lock they
// hold and dropping them from any call. It works on inactive sessions too so
// stragglers can always be cleaned up.
func (m *Manager) LeaveSession(ctx context.Context, sessionID, userID string) error {
	const op = "leave"

	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.hasMemberLocked(userID) {
		s.mu.Unlock()
		return errors.NewSessionError(op, errors.ErrUserNotInSession).WithSessionID(sessionID).WithUserID(userID)
	}
	released := m.leaveLocked(s, userID, "left", m.now())
	envs := s.drainLocked()
	s.mu.Unlock()

	m.logger.WithSession(sessionID).WithUser(userID).Info("user left", "released_locks", len(released))
	m.emit(ctx, s, envs)
	m.markOfflineIfIdle(userID)
	return nil
}

// leaveLocked runs the leave path for one participant and returns the files
// whose locks were released.
func (m *Manager) leaveLocked(s *Session, userID, reason string, now time.Time) []string {
	released := s.locks.ReleaseAll(userID)
	for _, file := range released {
		s.recordLocked(activity.FileUnlocked, userID, map[string]any{"file": file, "reason": reason})
		s.announceLocked(event.FileUnlocked, userID, map[string]any{"file": file, "reason": reason}, now)
	}

	if s.call.Leave(userID) {
		s.announceLocked(event.CallLeft, userID, map[string]any{"user_id": userID}, now)
	}

	s.removeMemberLocked(userID)
	name := userID
	if u, ok := m.presence.Get(userID); ok {
		name = u.Name
	}
	s.recordLocked(activity.UserLeft, userID, map[string]any{"reason": reason})
	msg := s.chat.System(fmt.Sprintf("%s left the session", name))
	s.announceLocked(event.UserLeft, userID, map[string]any{"reason": reason}, now)
	s.announceLocked(event.ChatMessage, chatSystemOrigin, msg, now)

	if s.active && userID == s.ownerID && len(s.members) == 0 {
		m.endLocked(s, userID, "owner left", now)
	}
	return released
}

// EndSession marks the session inactive and drives every remaining
// participant through the leave path.
func (m *Manager) EndSession(ctx context.Context, sessionID, by string) error {
	const op = "end"

	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := m.checkLocked(s, op, by, permission.ActionEndSession); err != nil {
		s.mu.Unlock()
		return err
	}
	now := m.now()
	m.endLocked(s, by, "ended", now)
	remaining := s.memberIDsLocked()
	for _, userID := range remaining {
		m.leaveLocked(s, userID, "session ended", now)
	}
	envs := s.drainLocked()
	s.mu.Unlock()

	m.logger.WithSession(sessionID).Info("session ended", "by", by, "participants", len(remaining))
	m.emit(ctx, s, envs)
	for _, userID := range remaining {
		m.markOfflineIfIdle(userID)
	}
	return nil
}

func (m *Manager) endLocked(s *Session, by, reason string, now time.Time) {
	s.active = false
	s.endedAt = now
	if final, ok := s.call.Stop(); ok {
		m.recordCallStopLocked(s, by, final.HasVideo())
		s.announceLocked(event.CallStopped, by, final, now)
	}
	s.announceLocked(event.SessionEnded, by, map[string]any{"reason": reason}, now)
}

// InviteContact allows contact to join a session that requires approval.
func (m *Manager) InviteContact(ctx context.Context, sessionID, by, contact string) error {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return errors.NewValidationError("contact must not be empty").WithField("contact")
	}
	return m.mutate(ctx, "invite", sessionID, by, permission.ActionInvite, func(s *Session, now time.Time) error {
		if !slices.Contains(s.invited, contact) {
			s.invited = append(s.invited, contact)
		}
		s.announceLocked(event.UserInvited, by, map[string]any{"contact": contact}, now)
		return nil
	})
}

// Get returns a snapshot of the session.
func (m *Manager) Get(sessionID string) (Snapshot, error) {
	s, err := m.lookup("get", sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(m.presence), nil
}

// List returns a snapshot of every session in creation order.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		s.mu.RLock()
		out = append(out, s.snapshotLocked(m.presence))
		s.mu.RUnlock()
	}
	return out
}

// SessionsFor returns the IDs of the active sessions userID participates in.
func (m *Manager) SessionsFor(userID string) []string {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.RUnlock()

	var ids []string
	for _, s := range sessions {
		s.mu.RLock()
		if s.active && s.hasMemberLocked(userID) {
			ids = append(ids, s.id)
		}
		s.mu.RUnlock()
	}
	return ids
}

// Activity returns the session's retained activity, oldest first.
func (m *Manager) Activity(sessionID string) ([]activity.Event, error) {
	s, err := m.lookup("activity", sessionID)
	if err != nil {
		return nil, err
	}
	return s.feed.Events(), nil
}

// lookup finds a session or reports ErrSessionNotFound for op.
func (m *Manager) lookup(op, sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewSessionError(op, errors.ErrSessionNotFound).WithSessionID(sessionID)
	}
	return s, nil
}

// checkLocked verifies the session is active, userID participates, and
// their level allows action when permissions are enforced.
func (m *Manager) checkLocked(s *Session, op, userID string, action permission.Action) error {
	if !s.active {
		return errors.NewSessionError(op, errors.ErrSessionInactive).WithSessionID(s.id).WithUserID(userID)
	}
	member, ok := s.memberLocked(userID)
	if !ok {
		return errors.NewSessionError(op, errors.ErrUserNotInSession).WithSessionID(s.id).WithUserID(userID)
	}
	return m.permitLocked(member, action)
}

// permitLocked checks member's level against action when permissions are enforced.
func (m *Manager) permitLocked(member *membership, action permission.Action) error {
	if m.cfg.EnforcePermissions && !permission.Can(member.permission, action) {
		return errors.NewPermissionError(member.userID, member.permission.String(), string(action))
	}
	return nil
}

// mutate runs fn under the session write lock once checkLocked passes and
// delivers whatever fn announced after the lock is released.
func (m *Manager) mutate(ctx context.Context, op, sessionID, userID string, action permission.Action, fn func(s *Session, now time.Time) error) error {
	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if err := m.checkLocked(s, op, userID, action); err != nil {
		s.mu.Unlock()
		return err
	}
	err = fn(s, m.now())
	envs := s.drainLocked()
	s.mu.Unlock()

	m.emit(ctx, s, envs)
	return err
}

// emit hands s's envelopes to the broadcaster in Seq order, waiting for
// concurrent mutations numbered earlier to deliver first. Failures are logged
// only. Broadcasters must not mutate the same session synchronously.
func (m *Manager) emit(ctx context.Context, s *Session, envs []event.Envelope) {
	for _, env := range envs {
		s.awaitTurn(env.Seq)
		err := m.broadcaster.Broadcast(ctx, env)
		s.finishTurn(env.Seq)
		if err != nil {
			m.logger.WithSession(env.SessionID).Warn("broadcast failed",
				"kind", string(env.Kind),
				"seq", env.Seq,
				"error", err.Error(),
			)
		}
	}
}

// markOfflineIfIdle marks a user offline once they are in no active session.
func (m *Manager) markOfflineIfIdle(userID string) {
	if len(m.SessionsFor(userID)) > 0 {
		return
	}
	if _, err := m.presence.UpdatePresence(userID, presence.Offline); err != nil {
		m.logger.WithUser(userID).Debug("could not mark user offline", "error", err.Error())
	}
}

// chatSystemOrigin is the origin of envelopes carrying system chat messages.
const chatSystemOrigin = "system"
