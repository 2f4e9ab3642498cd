package event

import "time"

// Kind identifies what an envelope announces.
type Kind string

// All subscribes a handler to every kind.
const All Kind = "*"

// Session lifecycle
const (
	SessionCreated Kind = "session_created"
	SessionEnded   Kind = "session_ended"
	UserJoined     Kind = "user_joined"
	UserLeft       Kind = "user_left"
	UserInvited    Kind = "user_invited"
)

// Presence
const (
	PresenceChanged Kind = "presence_changed"
	CursorMoved     Kind = "cursor_moved"
)

// Files and edits
const (
	FileShared   Kind = "file_shared"
	FileOpened   Kind = "file_opened"
	FileSaved    Kind = "file_saved"
	FileEdited   Kind = "file_edited"
	FileLocked   Kind = "file_locked"
	FileUnlocked Kind = "file_unlocked"
)

// Comments, reviews and chat
const (
	CommentAdded    Kind = "comment_added"
	CommentResolved Kind = "comment_resolved"
	CommentReacted  Kind = "comment_reacted"
	ReviewSubmitted Kind = "review_submitted"
	ChatMessage     Kind = "chat_message"
	MessageReacted  Kind = "message_reacted"
)

// Calls
const (
	CallStarted        Kind = "call_started"
	CallJoined         Kind = "call_joined"
	CallLeft           Kind = "call_left"
	CallStopped        Kind = "call_stopped"
	ScreenShareStarted Kind = "screen_share_started"
	ScreenShareStopped Kind = "screen_share_stopped"
)

// Envelope is one announced change. Seq increases by one per announcement
// within a session, so receivers can order envelopes and detect gaps.
type Envelope struct {
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Origin    string    `json:"origin,omitempty"` // User who caused the change; transports may skip echoing it back
	Seq       uint64    `json:"seq"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
