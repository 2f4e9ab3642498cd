package session

import (
	"context"
	"slices"
	"time"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/filelock"
	"github.com/Iron-Ham/cowork/internal/oplog"
	"github.com/Iron-Ham/cowork/internal/permission"
)

// ApplyEdit appends op to the session's operation log and returns it with its
// assigned version. The edit is rejected with ErrFileLocked when another
// participant holds the file's lock, whatever the editor's level; an
// unlocked file accepts edits from any editor.
func (m *Manager) ApplyEdit(ctx context.Context, sessionID string, op oplog.Operation) (oplog.Operation, error) {
	var applied oplog.Operation
	err := m.mutate(ctx, "edit", sessionID, op.UserID, permission.ActionRead, func(s *Session, now time.Time) error {
		if holder, ok := s.locks.Holder(op.File); ok && holder != op.UserID {
			return errors.NewLockError(errors.ErrFileLocked, op.File, holder, op.UserID)
		}
		member, _ := s.memberLocked(op.UserID)
		if err := m.permitLocked(member, permission.ActionEdit); err != nil {
			return err
		}

		op.SessionID = s.id
		var err error
		applied, err = s.ops.Append(op)
		if err != nil {
			return err
		}
		s.recordLocked(activity.FileEdited, op.UserID, map[string]any{
			"file":    applied.File,
			"kind":    string(applied.Kind),
			"version": applied.Version,
		})
		s.announceLocked(event.FileEdited, op.UserID, applied, now)
		return nil
	})
	if err != nil {
		return oplog.Operation{}, err
	}
	return applied, nil
}

// LockFile gives userID exclusive edit rights on file.
func (m *Manager) LockFile(ctx context.Context, sessionID, file, userID string) (filelock.Lock, error) {
	var lock filelock.Lock
	err := m.mutate(ctx, "lock", sessionID, userID, permission.ActionLock, func(s *Session, now time.Time) error {
		var err error
		lock, err = s.locks.Lock(file, userID)
		if err != nil {
			return err
		}
		s.recordLocked(activity.FileLocked, userID, map[string]any{"file": file})
		s.announceLocked(event.FileLocked, userID, lock, now)
		return nil
	})
	if err != nil {
		return filelock.Lock{}, err
	}
	m.logger.WithSession(sessionID).WithUser(userID).Debug("file locked", "file", file)
	return lock, nil
}

// UnlockFile releases userID's lock on file.
func (m *Manager) UnlockFile(ctx context.Context, sessionID, file, userID string) error {
	return m.mutate(ctx, "unlock", sessionID, userID, permission.ActionLock, func(s *Session, now time.Time) error {
		if err := s.locks.Unlock(file, userID); err != nil {
			return err
		}
		s.recordLocked(activity.FileUnlocked, userID, map[string]any{"file": file})
		s.announceLocked(event.FileUnlocked, userID, map[string]any{"file": file}, now)
		return nil
	})
}

// ShareFile adds file to the session's shared file list. Sharing a file
// twice is a no-op that still succeeds.
func (m *Manager) ShareFile(ctx context.Context, sessionID, file, userID string) error {
	if file == "" {
		return errors.NewValidationError("file must not be empty").WithField("file")
	}
	return m.mutate(ctx, "share", sessionID, userID, permission.ActionEdit, func(s *Session, now time.Time) error {
		if slices.Contains(s.sharedFiles, file) {
			return nil
		}
		s.sharedFiles = append(s.sharedFiles, file)
		s.announceLocked(event.FileShared, userID, map[string]any{"file": file}, now)
		return nil
	})
}

// OpenFile records that userID opened file.
func (m *Manager) OpenFile(ctx context.Context, sessionID, file, userID string) error {
	return m.fileActivity(ctx, "open", sessionID, file, userID, permission.ActionRead, activity.FileOpened, event.FileOpened)
}

// SaveFile records that userID saved file.
func (m *Manager) SaveFile(ctx context.Context, sessionID, file, userID string) error {
	return m.fileActivity(ctx, "save", sessionID, file, userID, permission.ActionEdit, activity.FileSaved, event.FileSaved)
}

func (m *Manager) fileActivity(ctx context.Context, op, sessionID, file, userID string, action permission.Action, ak activity.Kind, ek event.Kind) error {
	if file == "" {
		return errors.NewValidationError("file must not be empty").WithField("file")
	}
	return m.mutate(ctx, op, sessionID, userID, action, func(s *Session, now time.Time) error {
		s.recordLocked(ak, userID, map[string]any{"file": file})
		s.announceLocked(ek, userID, map[string]any{"file": file}, now)
		return nil
	})
}

// Operations returns the operations applied to file in version order.
func (m *Manager) Operations(sessionID, file string) ([]oplog.Operation, error) {
	s, err := m.lookup("operations", sessionID)
	if err != nil {
		return nil, err
	}
	return s.ops.Operations(file), nil
}

// Locks returns the session's current locks sorted by file.
func (m *Manager) Locks(sessionID string) ([]filelock.Lock, error) {
	s, err := m.lookup("locks", sessionID)
	if err != nil {
		return nil, err
	}
	return s.locks.Snapshot(), nil
}
