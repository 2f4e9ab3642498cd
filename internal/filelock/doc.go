// Package filelock tracks exclusive file locks within a single collaborative session.
//
// A participant locks a file before editing it so that edits from everyone else
// are rejected until the lock is released. Locks are advisory for the holder and
// binding for everyone else: the session manager refuses edits to a file locked
// by another participant.
//
// # Semantics
//
// Locks are not re-entrant. Locking a file that already has a holder fails with
// [errors.ErrAlreadyLocked], even when the requester is the current holder. Only
// the holder may unlock; anyone else gets [errors.ErrLockedByOther].
//
// # Basic Usage
//
//	tbl := filelock.NewTable()
//
//	lock, err := tbl.Lock("src/main.rs", "alice")
//
//	holder, ok := tbl.Holder("src/main.rs")
//
//	err = tbl.Unlock("src/main.rs", "alice")
//
//	// Release everything a departing participant holds
//	released := tbl.ReleaseAll("alice")
//
// # Thread Safety
//
// All [Table] methods are safe for concurrent use via an internal sync.RWMutex.
package filelock
