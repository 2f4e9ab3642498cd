package scenario

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/cowork/internal/chat"
	"github.com/Iron-Ham/cowork/internal/coordination"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/oplog"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
	"github.com/Iron-Ham/cowork/internal/review"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int    `json:"index"`
	Action   Action `json:"action"`
	User     string `json:"user"`
	OK       bool   `json:"ok"`
	Detail   string `json:"detail,omitempty"`
	Expected string `json:"expected,omitempty"` // Expected error kind, if any
	Err      error  `json:"-"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Name      string       `json:"name"`
	SessionID string       `json:"session_id"`
	Steps     []StepResult `json:"steps"`
}

// Passed reports whether every step behaved as expected.
func (r *Result) Passed() bool {
	return len(r.Failures()) == 0
}

// Failures returns the steps that did not behave as expected.
func (r *Result) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if !s.OK {
			out = append(out, s)
		}
	}
	return out
}

// runner carries state between steps.
type runner struct {
	hub       *coordination.Hub
	sc        *Scenario
	sessionID string
	comments  map[string]string // label -> comment ID
}

// Run executes every step of sc against hub. Unexpected step outcomes are
// recorded in the Result; the returned error is reserved for ctx cancellation.
func Run(ctx context.Context, hub *coordination.Hub, sc *Scenario) (*Result, error) {
	r := &runner{hub: hub, sc: sc, comments: make(map[string]string)}
	res := &Result{Name: sc.Name}

	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		detail, err := r.step(ctx, st)
		sr := StepResult{
			Index:    i,
			Action:   st.Action,
			User:     st.User,
			Detail:   detail,
			Expected: st.ExpectError,
			Err:      err,
		}
		switch {
		case st.ExpectError != "":
			sr.OK = err != nil && errors.KindOf(err) == errors.ParseKind(st.ExpectError)
		default:
			sr.OK = err == nil
		}
		res.Steps = append(res.Steps, sr)
	}
	res.SessionID = r.sessionID
	return res, nil
}

func (r *runner) step(ctx context.Context, st Step) (string, error) {
	m := r.hub.Manager()

	switch st.Action {
	case ActionCreate:
		snap, err := m.CreateSession(ctx, r.sc.identity(st.User), st.Mode, st.Name, st.Settings)
		if err != nil {
			return "", err
		}
		r.sessionID = snap.ID
		return fmt.Sprintf("session %s (%s)", snap.ID, snap.Mode), nil

	case ActionJoin:
		level := permission.Level(st.Permission)
		if err := m.JoinSession(ctx, r.sessionID, r.sc.identity(st.User), level); err != nil {
			return "", err
		}
		return "joined as " + permission.Normalize(st.Permission).String(), nil

	case ActionLeave:
		return "", m.LeaveSession(ctx, r.sessionID, st.User)

	case ActionEnd:
		return "", m.EndSession(ctx, r.sessionID, st.User)

	case ActionLock:
		lock, err := m.LockFile(ctx, r.sessionID, st.File, st.User)
		if err != nil {
			return "", err
		}
		return "locked " + lock.File, nil

	case ActionUnlock:
		return "", m.UnlockFile(ctx, r.sessionID, st.File, st.User)

	case ActionEdit:
		return r.edit(ctx, st)

	case ActionCursor:
		_, err := m.UpdateCursor(ctx, r.sessionID, st.User, presence.CursorUpdate{File: st.File, At: st.At})
		return "", err

	case ActionPresence:
		u, err := m.UpdatePresence(ctx, st.User, presence.Status(st.Status))
		if err != nil {
			return "", err
		}
		return "status " + string(u.Status), nil

	case ActionComment:
		c, err := m.AddComment(ctx, r.sessionID, st.User, st.File, st.Line, st.Content)
		if err != nil {
			return "", err
		}
		r.label(st.Label, c.ID)
		return fmt.Sprintf("comment on %s:%d", c.File, c.Line), nil

	case ActionReply:
		c, err := m.ReplyComment(ctx, r.sessionID, r.comments[st.Parent], st.User, st.Content)
		if err != nil {
			return "", err
		}
		r.label(st.Label, c.ID)
		return "reply to " + st.Parent, nil

	case ActionReview:
		rv, err := m.SubmitReview(ctx, r.sessionID, review.Submission{
			Reviewer: st.User,
			Status:   review.Status(st.Status),
			Summary:  st.Content,
			Files:    filesOf(st.File),
		})
		if err != nil {
			return "", err
		}
		return "review " + rv.Status.String(), nil

	case ActionChat:
		_, err := m.SendMessage(ctx, r.sessionID, chat.Draft{Author: st.User, Content: st.Content})
		return "", err

	case ActionCallStart:
		snap, err := m.StartCall(ctx, r.sessionID, st.User, st.Audio, st.Video)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("call started, recording=%t", snap.Recording), nil

	case ActionCallJoin:
		snap, err := m.JoinCall(ctx, r.sessionID, st.User, st.Audio, st.Video)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d in call", len(snap.Participants)), nil

	case ActionCallStop:
		stopped, err := m.StopCall(ctx, r.sessionID, st.User)
		if err != nil {
			return "", err
		}
		if !stopped {
			return "", errors.NewSessionError("call_stop", errors.ErrNoActiveCall).WithSessionID(r.sessionID)
		}
		return "call stopped", nil

	case ActionScreenShare:
		_, err := m.StartScreenShare(ctx, r.sessionID, st.User)
		return "", err

	case ActionHeartbeat:
		return "", r.hub.Heartbeat(r.sessionID, st.User)
	}
	return "", errors.NewValidationError("unknown action").WithField("action").WithValue(st.Action)
}

func (r *runner) edit(ctx context.Context, st Step) (string, error) {
	kind := oplog.Kind(st.Op)
	if kind == "" {
		kind = oplog.Insert
	}
	op, err := r.hub.Manager().ApplyEdit(ctx, r.sessionID, oplog.Operation{
		UserID:      st.User,
		File:        st.File,
		Kind:        kind,
		Position:    st.Position,
		Length:      st.Length,
		Text:        st.Text,
		BaseVersion: st.BaseVersion,
	})
	if err != nil {
		return "", err
	}
	if st.ExpectVersion != nil && op.Version != *st.ExpectVersion {
		return "", fmt.Errorf("%s: got version %d, want %d", op.File, op.Version, *st.ExpectVersion)
	}
	return fmt.Sprintf("%s v%d", op.File, op.Version), nil
}

func (r *runner) label(label, id string) {
	if label != "" {
		r.comments[label] = id
	}
}

func filesOf(file string) []string {
	if file == "" {
		return nil
	}
	return []string{file}
}
