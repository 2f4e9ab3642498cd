package chat

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cowork/internal/errors"
)

// History holds every message of one session in posting order.
// It is unbounded; consumers paginate with Page.
type History struct {
	mu        sync.RWMutex
	sessionID string
	messages  []*Message
	index     map[string]*Message
	now       func() time.Time
	newID     func() string
}

// NewHistory creates an empty history for sessionID.
func NewHistory(sessionID string, opts ...Option) *History {
	h := &History{
		sessionID: sessionID,
		index:     make(map[string]*Message),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Post appends a participant message. An empty kind defaults to text.
// System messages cannot be posted; use System.
func (h *History) Post(d Draft) (Message, error) {
	if d.Kind == "" {
		d.Kind = KindText
	}
	switch {
	case !d.Kind.IsValid():
		return Message{}, errors.NewValidationError("unknown message kind").WithField("kind").WithValue(d.Kind)
	case d.Kind == KindSystem:
		return Message{}, errors.NewValidationError("participants cannot post system messages").WithField("kind")
	case d.Author == "":
		return Message{}, errors.NewValidationError("author must not be empty").WithField("author")
	case strings.TrimSpace(d.Content) == "":
		return Message{}, errors.NewValidationError("message must not be empty").WithField("content")
	case d.Kind == KindFile && d.Metadata["path"] == "":
		return Message{}, errors.NewValidationError("file messages need a path").WithField("metadata.path")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if d.ThreadID != "" {
		if _, ok := h.index[d.ThreadID]; !ok {
			return Message{}, errors.NewNotFoundError("message", d.ThreadID).WithCause(errors.ErrMessageNotFound)
		}
	}

	msg := &Message{
		ID:        h.newID(),
		SessionID: h.sessionID,
		Author:    d.Author,
		Content:   d.Content,
		Kind:      d.Kind,
		Metadata:  maps.Clone(d.Metadata),
		ThreadID:  d.ThreadID,
		Timestamp: h.now(),
	}
	h.appendLocked(msg)
	return msg.clone(), nil
}

// System appends a session-generated message.
func (h *History) System(content string) Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := &Message{
		ID:        h.newID(),
		SessionID: h.sessionID,
		Author:    SystemAuthor,
		Content:   content,
		Kind:      KindSystem,
		Timestamp: h.now(),
	}
	h.appendLocked(msg)
	return msg.clone()
}

func (h *History) appendLocked(msg *Message) {
	h.messages = append(h.messages, msg)
	h.index[msg.ID] = msg
}

// React adds userID's symbol reaction to a message. Repeats are no-ops.
func (h *History) React(messageID, userID, symbol string) (Message, error) {
	if symbol == "" {
		return Message{}, errors.NewValidationError("reaction must not be empty").WithField("symbol")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	msg, ok := h.index[messageID]
	if !ok {
		return Message{}, errors.NewNotFoundError("message", messageID).WithCause(errors.ErrMessageNotFound)
	}
	msg.Reactions.Add(symbol, userID)
	return msg.clone(), nil
}

// Get returns a copy of the message with id.
func (h *History) Get(id string) (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg, ok := h.index[id]
	if !ok {
		return Message{}, false
	}
	return msg.clone(), true
}

// Messages returns every message in posting order.
func (h *History) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cloneRange(0, len(h.messages))
}

// Page returns up to limit messages starting at offset.
// A non-positive limit returns everything after offset.
func (h *History) Page(offset, limit int) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(h.messages) {
		return nil
	}
	end := len(h.messages)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return h.cloneRange(offset, end)
}

// Thread returns the replies to threadID in posting order.
func (h *History) Thread(threadID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Message
	for _, msg := range h.messages {
		if msg.ThreadID == threadID {
			out = append(out, msg.clone())
		}
	}
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

func (h *History) cloneRange(from, to int) []Message {
	out := make([]Message, 0, to-from)
	for _, msg := range h.messages[from:to] {
		out = append(out, msg.clone())
	}
	return out
}
