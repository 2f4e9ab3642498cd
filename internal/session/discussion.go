package session

import (
	"context"
	"time"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/chat"
	"github.com/Iron-Ham/cowork/internal/comment"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/review"
)

// AddComment anchors a new top-level comment to file:line.
func (m *Manager) AddComment(ctx context.Context, sessionID, author, file string, line int, content string) (comment.Comment, error) {
	var c comment.Comment
	err := m.mutate(ctx, "comment", sessionID, author, permission.ActionComment, func(s *Session, now time.Time) error {
		var err error
		if c, err = s.comments.Add(author, file, line, content); err != nil {
			return err
		}
		s.recordLocked(activity.CommentAdded, author, map[string]any{"comment_id": c.ID, "file": file, "line": line})
		s.announceLocked(event.CommentAdded, author, c, now)
		return nil
	})
	return c, err
}

// ReplyComment answers an existing comment. The reply inherits its parent's
// file and line.
func (m *Manager) ReplyComment(ctx context.Context, sessionID, parentID, author, content string) (comment.Comment, error) {
	var c comment.Comment
	err := m.mutate(ctx, "reply", sessionID, author, permission.ActionComment, func(s *Session, now time.Time) error {
		var err error
		if c, err = s.comments.Reply(parentID, author, content); err != nil {
			return err
		}
		s.recordLocked(activity.CommentAdded, author, map[string]any{"comment_id": c.ID, "parent_id": parentID})
		s.announceLocked(event.CommentAdded, author, c, now)
		return nil
	})
	return c, err
}

// ResolveComment marks a comment resolved or reopens it.
func (m *Manager) ResolveComment(ctx context.Context, sessionID, commentID, userID string, resolved bool) (comment.Comment, error) {
	var c comment.Comment
	err := m.mutate(ctx, "resolve", sessionID, userID, permission.ActionComment, func(s *Session, now time.Time) error {
		var err error
		if c, err = s.comments.Resolve(commentID, resolved); err != nil {
			return err
		}
		s.announceLocked(event.CommentResolved, userID, map[string]any{"comment_id": c.ID, "resolved": resolved}, now)
		return nil
	})
	return c, err
}

// ReactComment adds userID's symbol reaction to a comment.
func (m *Manager) ReactComment(ctx context.Context, sessionID, commentID, userID, symbol string) (comment.Comment, error) {
	var c comment.Comment
	err := m.mutate(ctx, "react", sessionID, userID, permission.ActionComment, func(s *Session, now time.Time) error {
		var err error
		if c, err = s.comments.React(commentID, userID, symbol); err != nil {
			return err
		}
		s.announceLocked(event.CommentReacted, userID, map[string]any{
			"comment_id": c.ID,
			"reactions":  c.Reactions.Counts(),
		}, now)
		return nil
	})
	return c, err
}

// FindComment searches the thread rooted at rootID depth-first for targetID.
func (m *Manager) FindComment(sessionID, rootID, targetID string) (comment.Comment, bool, error) {
	s, err := m.lookup("find_comment", sessionID)
	if err != nil {
		return comment.Comment{}, false, err
	}
	c, ok := s.comments.Find(rootID, targetID)
	return c, ok, nil
}

// Comments returns the top-level comments on file sorted by line, or every
// top-level comment when file is empty.
func (m *Manager) Comments(sessionID, file string) ([]comment.Comment, error) {
	s, err := m.lookup("comments", sessionID)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return s.comments.Roots(), nil
	}
	return s.comments.ForFile(file), nil
}

// SubmitReview records a reviewer's verdict.
func (m *Manager) SubmitReview(ctx context.Context, sessionID string, sub review.Submission) (review.Review, error) {
	var r review.Review
	err := m.mutate(ctx, "review", sessionID, sub.Reviewer, permission.ActionReview, func(s *Session, now time.Time) error {
		var err error
		if r, err = s.reviews.Submit(sub); err != nil {
			return err
		}
		s.recordLocked(activity.ReviewSubmitted, sub.Reviewer, map[string]any{
			"review_id": r.ID,
			"status":    string(r.Status),
			"files":     len(r.Files),
		})
		s.announceLocked(event.ReviewSubmitted, sub.Reviewer, r, now)
		return nil
	})
	return r, err
}

// Reviews returns every review in submission order.
func (m *Manager) Reviews(sessionID string) ([]review.Review, error) {
	s, err := m.lookup("reviews", sessionID)
	if err != nil {
		return nil, err
	}
	return s.reviews.All(), nil
}

// LatestReviews returns each reviewer's most recent review sorted by reviewer.
func (m *Manager) LatestReviews(sessionID string) ([]review.Review, error) {
	s, err := m.lookup("reviews", sessionID)
	if err != nil {
		return nil, err
	}
	return s.reviews.LatestSorted(), nil
}

// ReviewVerdict aggregates the latest reviews into one status.
func (m *Manager) ReviewVerdict(sessionID string) (review.Status, error) {
	s, err := m.lookup("reviews", sessionID)
	if err != nil {
		return "", err
	}
	return s.reviews.Verdict(), nil
}

// SendMessage posts a participant chat message.
func (m *Manager) SendMessage(ctx context.Context, sessionID string, d chat.Draft) (chat.Message, error) {
	var msg chat.Message
	err := m.mutate(ctx, "chat", sessionID, d.Author, permission.ActionChat, func(s *Session, now time.Time) error {
		var err error
		if msg, err = s.chat.Post(d); err != nil {
			return err
		}
		s.recordLocked(activity.ChatMessage, d.Author, map[string]any{"message_id": msg.ID, "kind": string(msg.Kind)})
		s.announceLocked(event.ChatMessage, d.Author, msg, now)
		return nil
	})
	return msg, err
}

// ReactMessage adds userID's symbol reaction to a chat message.
func (m *Manager) ReactMessage(ctx context.Context, sessionID, messageID, userID, symbol string) (chat.Message, error) {
	var msg chat.Message
	err := m.mutate(ctx, "react", sessionID, userID, permission.ActionChat, func(s *Session, now time.Time) error {
		var err error
		if msg, err = s.chat.React(messageID, userID, symbol); err != nil {
			return err
		}
		s.announceLocked(event.MessageReacted, userID, map[string]any{
			"message_id": msg.ID,
			"reactions":  msg.Reactions.Counts(),
		}, now)
		return nil
	})
	return msg, err
}

// Messages returns a page of the chat history. A non-positive limit returns
// everything from offset on.
func (m *Manager) Messages(sessionID string, offset, limit int) ([]chat.Message, error) {
	s, err := m.lookup("messages", sessionID)
	if err != nil {
		return nil, err
	}
	return s.chat.Page(offset, limit), nil
}
