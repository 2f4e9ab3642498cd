package session

import (
	"context"

	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
)

// UpdateCursor moves userID's cursor and broadcasts the move to the session.
// Cursor traffic is high frequency: it takes only a read lock on the session
// and is not recorded in the activity feed.
func (m *Manager) UpdateCursor(ctx context.Context, sessionID, userID string, upd presence.CursorUpdate) (presence.User, error) {
	const op = "cursor"

	s, err := m.lookup(op, sessionID)
	if err != nil {
		return presence.User{}, err
	}

	s.mu.RLock()
	if err := m.checkLocked(s, op, userID, permission.ActionRead); err != nil {
		s.mu.RUnlock()
		return presence.User{}, err
	}
	user, err := m.presence.UpdateCursor(userID, upd)
	if err != nil {
		s.mu.RUnlock()
		return presence.User{}, err
	}
	env := s.envelope(event.CursorMoved, userID, map[string]any{
		"user_id":   userID,
		"cursor":    user.Cursor,
		"selection": user.Selection,
	}, user.LastActivity)
	s.mu.RUnlock()

	m.emit(ctx, s, []event.Envelope{env})
	return user, nil
}

// UpdatePresence sets userID's status and announces it to every active
// session they participate in.
func (m *Manager) UpdatePresence(ctx context.Context, userID string, status presence.Status) (presence.User, error) {
	user, err := m.presence.UpdatePresence(userID, status)
	if err != nil {
		return presence.User{}, err
	}

	for _, id := range m.SessionsFor(userID) {
		s, err := m.lookup("presence", id)
		if err != nil {
			continue
		}
		s.mu.RLock()
		if !s.active || !s.hasMemberLocked(userID) {
			s.mu.RUnlock()
			continue
		}
		env := s.envelope(event.PresenceChanged, userID, map[string]any{
			"user_id": userID,
			"status":  string(status),
		}, user.LastActivity)
		s.mu.RUnlock()

		m.emit(ctx, s, []event.Envelope{env})
	}
	return user, nil
}

// Heartbeat refreshes userID's last activity. It reports ErrUserNotInSession
// when the user has already left, so liveness layers can stop tracking them.
func (m *Manager) Heartbeat(sessionID, userID string) error {
	const op = "heartbeat"

	s, err := m.lookup(op, sessionID)
	if err != nil {
		return err
	}
	s.mu.RLock()
	member := s.hasMemberLocked(userID)
	s.mu.RUnlock()
	if !member {
		return errors.NewSessionError(op, errors.ErrUserNotInSession).WithSessionID(sessionID).WithUserID(userID)
	}
	return m.presence.Touch(userID)
}

// ActiveUsers returns the participants whose status is online or busy, in
// join order.
func (m *Manager) ActiveUsers(sessionID string) ([]presence.User, error) {
	s, err := m.lookup("active_users", sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	users := m.presence.Users(s.memberIDsLocked())
	s.mu.RUnlock()

	active := users[:0]
	for _, u := range users {
		if u.Status.IsActive() {
			active = append(active, u)
		}
	}
	return active, nil
}
