package session

import (
	"context"
	"time"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/call"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/permission"
)

// StartCall begins the session's call with userID as its first participant.
// Calls started in sessions with RecordSession set are marked as recorded.
func (m *Manager) StartCall(ctx context.Context, sessionID, userID string, audio, video bool) (call.Snapshot, error) {
	const op = "call_start"

	var snap call.Snapshot
	err := m.mutate(ctx, op, sessionID, userID, permission.ActionCall, func(s *Session, now time.Time) error {
		if !s.settings.AllowVoiceVideo {
			return errors.NewSessionError(op, errors.Wrap(errors.ErrNotAllowed, "voice and video are disabled")).
				WithSessionID(s.id).WithUserID(userID)
		}
		var err error
		if snap, err = s.call.Start(userID, audio, video, s.settings.RecordSession); err != nil {
			return errors.NewSessionError(op, err).WithSessionID(s.id).WithUserID(userID)
		}
		kind := activity.VoiceStarted
		if video {
			kind = activity.VideoStarted
		}
		s.recordLocked(kind, userID, map[string]any{"recording": snap.Recording})
		s.announceLocked(event.CallStarted, userID, snap, now)
		return nil
	})
	return snap, err
}

// JoinCall adds userID to the call in progress, or updates their media.
func (m *Manager) JoinCall(ctx context.Context, sessionID, userID string, audio, video bool) (call.Snapshot, error) {
	const op = "call_join"

	var snap call.Snapshot
	err := m.mutate(ctx, op, sessionID, userID, permission.ActionCall, func(s *Session, now time.Time) error {
		var err error
		if snap, err = s.call.Join(userID, audio, video); err != nil {
			return errors.NewSessionError(op, err).WithSessionID(s.id).WithUserID(userID)
		}
		s.announceLocked(event.CallJoined, userID, snap, now)
		return nil
	})
	return snap, err
}

// LeaveCall removes userID from the call without leaving the session.
// Returns false when they were not in a call.
func (m *Manager) LeaveCall(ctx context.Context, sessionID, userID string) (bool, error) {
	var left bool
	err := m.mutate(ctx, "call_leave", sessionID, userID, permission.ActionCall, func(s *Session, now time.Time) error {
		if left = s.call.Leave(userID); left {
			s.announceLocked(event.CallLeft, userID, map[string]any{"user_id": userID}, now)
		}
		return nil
	})
	return left, err
}

// StopCall ends the session's call. Returns false when no call was in progress.
func (m *Manager) StopCall(ctx context.Context, sessionID, userID string) (bool, error) {
	var stopped bool
	err := m.mutate(ctx, "call_stop", sessionID, userID, permission.ActionCall, func(s *Session, now time.Time) error {
		final, ok := s.call.Stop()
		if !ok {
			return nil
		}
		stopped = true
		m.recordCallStopLocked(s, userID, final.HasVideo())
		s.announceLocked(event.CallStopped, userID, final, now)
		return nil
	})
	return stopped, err
}

func (m *Manager) recordCallStopLocked(s *Session, userID string, video bool) {
	kind := activity.VoiceStopped
	if video {
		kind = activity.VideoStopped
	}
	s.recordLocked(kind, userID, nil)
}

// StartScreenShare marks userID as sharing their screen in the call.
func (m *Manager) StartScreenShare(ctx context.Context, sessionID, userID string) (call.Snapshot, error) {
	const op = "screen_share_start"

	var snap call.Snapshot
	err := m.mutate(ctx, op, sessionID, userID, permission.ActionShareScreen, func(s *Session, now time.Time) error {
		if !s.settings.AllowScreenShare {
			return errors.NewSessionError(op, errors.Wrap(errors.ErrNotAllowed, "screen sharing is disabled")).
				WithSessionID(s.id).WithUserID(userID)
		}
		var err error
		if snap, err = s.call.StartScreenShare(userID); err != nil {
			return errors.NewSessionError(op, err).WithSessionID(s.id).WithUserID(userID)
		}
		s.recordLocked(activity.ScreenShareStarted, userID, nil)
		s.announceLocked(event.ScreenShareStarted, userID, map[string]any{"user_id": userID}, now)
		return nil
	})
	return snap, err
}

// StopScreenShare clears userID's sharing flag. Returns false if they were
// not sharing.
func (m *Manager) StopScreenShare(ctx context.Context, sessionID, userID string) (bool, error) {
	var stopped bool
	err := m.mutate(ctx, "screen_share_stop", sessionID, userID, permission.ActionCall, func(s *Session, now time.Time) error {
		if stopped = s.call.StopScreenShare(userID); stopped {
			s.recordLocked(activity.ScreenShareStopped, userID, nil)
			s.announceLocked(event.ScreenShareStopped, userID, map[string]any{"user_id": userID}, now)
		}
		return nil
	})
	return stopped, err
}

// Call returns the call in progress, if any.
func (m *Manager) Call(sessionID string) (call.Snapshot, bool, error) {
	s, err := m.lookup("call", sessionID)
	if err != nil {
		return call.Snapshot{}, false, err
	}
	snap, ok := s.call.Current()
	return snap, ok, nil
}
