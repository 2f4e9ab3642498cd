// Package session coordinates collaborative sessions: who is in them, which
// files they lock and edit, and the comments, reviews, chat and calls that
// happen inside them.
//
// # Architecture
//
// The [Manager] is an explicit registry of sessions. Each [Session] owns its
// lock table, operation log, activity feed, comment thread, review log, chat
// history and call state, and serializes every mutation of them behind one
// per-session sync.RWMutex. Sessions never share a lock, so work in different
// sessions proceeds in parallel.
//
// Users live in a shared presence registry. Cursor and status updates touch
// only that registry plus a read lock on the session, so the high-frequency
// traffic never waits behind edits.
//
// # Broadcasting
//
// Every mutation produces one or more [event.Envelope] values numbered by a
// per-session sequence. They are collected under the session lock and handed
// to the broadcaster after the lock is released, one at a time and in sequence
// order even when mutations race. A failed broadcast is logged and never
// undoes the mutation.
//
// # Permissions
//
// A participant's permission level belongs to their membership in one session,
// not to the user. The manager checks it before edits, locks, comments,
// reviews, screen sharing, invitations and ending the session unless
// permission enforcement is turned off in configuration. An edit to a file
// someone else has locked fails with the lock conflict before the level is
// considered. The session's owner always rejoins as owner.
//
// # Lifecycle
//
// A session is created active with its owner as the only participant. It
// becomes inactive when the owner ends it, or when the owner leaves and no
// participant remains. An inactive session never becomes active again.
package session
