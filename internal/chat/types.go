package chat

import (
	"time"

	"github.com/Iron-Ham/cowork/internal/reaction"
)

// Kind identifies what a message carries.
type Kind string

const (
	// KindText is a plain chat line.
	KindText Kind = "text"

	// KindCode is a code snippet; Metadata may carry "language".
	KindCode Kind = "code"

	// KindFile references a shared file; Metadata carries "path".
	KindFile Kind = "file"

	// KindSystem is generated by the session, never by a participant.
	KindSystem Kind = "system"
)

// SystemAuthor is the author recorded on system messages.
const SystemAuthor = "system"

var validKinds = map[Kind]bool{
	KindText:   true,
	KindCode:   true,
	KindFile:   true,
	KindSystem: true,
}

// IsValid returns true if the kind is a known message kind.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// Message is one entry in the chat history.
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Author    string            `json:"author"`
	Content   string            `json:"content"`
	Kind      Kind              `json:"kind"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Reactions reaction.Set      `json:"reactions"`
	ThreadID  string            `json:"thread_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// IsSystem returns true if the session generated the message.
func (m *Message) IsSystem() bool {
	return m.Kind == KindSystem
}

func (m *Message) clone() Message {
	out := *m
	if m.Metadata != nil {
		out.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	out.Reactions = m.Reactions.Clone()
	return out
}

// Draft is a participant-authored message before it is posted.
type Draft struct {
	Author   string
	Content  string
	Kind     Kind
	Metadata map[string]string
	ThreadID string
}
