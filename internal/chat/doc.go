// Package chat provides the append-only message history of a session.
//
// Participants post text, code snippets and file references. The session
// itself posts system messages when participants join and leave. Messages may
// answer an earlier message by setting ThreadID, and collect reactions.
//
// # Basic Usage
//
//	h := chat.NewHistory("session-1")
//
//	msg, err := h.Post(chat.Draft{Author: "alice", Content: "ready?"})
//
//	h.System("bob joined the session")
//
//	page := h.Page(0, 50)
//
// # Thread Safety
//
// All [History] methods are safe for concurrent use.
package chat
