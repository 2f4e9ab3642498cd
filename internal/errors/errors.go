// Package errors provides centralized error definitions and error handling utilities
// for the cowork collaboration core. It defines sentinel errors for every business
// rule the core enforces, typed errors that carry the detail a client needs to
// explain a failure, and classification helpers.
//
// # Error Kinds
//
// Every failure the core reports belongs to one [Kind]:
//   - KindNotFound: a session, user, comment, message or lock is missing
//   - KindConflict: the file is locked, the lock is held by someone else, already joined
//   - KindPolicyDenied: disabled by session settings, insufficient permission, session full
//   - KindInvalidState: session inactive, no active call to stop or share
//   - KindInvalid: malformed input
//   - KindInternal: anything unexpected
//
// Business-rule failures are returned as ordinary error values. Callers branch on
// the kind or on the sentinel:
//
//	if errors.Is(err, errors.ErrSessionFull) { ... }
//	switch errors.KindOf(err) {
//	case errors.KindConflict:
//	    // re-fetch lock state and retry
//	}
//
// Lock conflicts carry the file and the current holder:
//
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) {
//	    fmt.Printf("%s is locked by %s\n", lockErr.File, lockErr.Holder)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for expected business outcomes such as a lost lock race.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for broken internal invariants.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind classifies an error by how a caller should react to it.
type Kind int

const (
	// KindNone is returned by KindOf for a nil error.
	KindNone Kind = iota
	// KindNotFound means the referenced entity does not exist.
	KindNotFound
	// KindConflict means the request collides with another participant's state.
	KindConflict
	// KindPolicyDenied means settings or permissions forbid the request.
	KindPolicyDenied
	// KindInvalidState means the entity is in a state that cannot accept the request.
	KindInvalidState
	// KindInvalid means the request itself is malformed.
	KindInvalid
	// KindInternal covers everything unexpected.
	KindInternal
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPolicyDenied:
		return "policy_denied"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalid:
		return "invalid"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back to a Kind. Unknown names map to KindInternal.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return KindNone
	case "not_found", "notfound":
		return KindNotFound
	case "conflict":
		return KindConflict
	case "policy_denied", "policydenied":
		return KindPolicyDenied
	case "invalid_state", "invalidstate":
		return KindInvalidState
	case "invalid":
		return KindInvalid
	default:
		return KindInternal
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionInactive indicates that a session has ended.
	ErrSessionInactive = New("session is not active")
	// ErrSessionFull indicates that the session reached its participant limit.
	ErrSessionFull = New("session is full")
	// ErrApprovalRequired indicates that the session only admits invited contacts.
	ErrApprovalRequired = New("session requires an invitation")
)

// Participant-related sentinel errors
var (
	// ErrUserNotFound indicates that a user is unknown to the presence registry.
	ErrUserNotFound = New("user not found")
	// ErrUserNotInSession indicates that a user is not a participant of the session.
	ErrUserNotInSession = New("user is not in session")
	// ErrAlreadyJoined indicates that a user is already a participant.
	ErrAlreadyJoined = New("user already joined session")
)

// Lock and edit sentinel errors
var (
	// ErrFileLocked indicates that an edit targeted a file locked by another user.
	ErrFileLocked = New("file is locked by another user")
	// ErrAlreadyLocked indicates that a file already has a lock holder.
	ErrAlreadyLocked = New("file is already locked")
	// ErrNotLocked indicates that an unlock targeted a file without a lock.
	ErrNotLocked = New("file is not locked")
	// ErrLockedByOther indicates that only the holder may release a lock.
	ErrLockedByOther = New("lock is held by another user")
	// ErrStaleOperation indicates that an edit was based on an outdated version.
	ErrStaleOperation = New("operation is based on a stale version")
)

// Policy sentinel errors
var (
	// ErrPermissionDenied indicates that the participant's level forbids the action.
	ErrPermissionDenied = New("permission denied")
	// ErrNotAllowed indicates that session settings disable the feature.
	ErrNotAllowed = New("not allowed by session settings")
)

// Call sentinel errors
var (
	// ErrNoActiveCall indicates that the session has no call in progress.
	ErrNoActiveCall = New("no active call")
	// ErrCallActive indicates that a call is already in progress.
	ErrCallActive = New("call already active")
	// ErrNotInCall indicates that a user is not a call participant.
	ErrNotInCall = New("user is not in call")
	// ErrScreenShareActive indicates that someone else is already sharing.
	ErrScreenShareActive = New("screen share already active")
)

// Content sentinel errors
var (
	// ErrCommentNotFound indicates that a comment id is unknown.
	ErrCommentNotFound = New("comment not found")
	// ErrMessageNotFound indicates that a chat message id is unknown.
	ErrMessageNotFound = New("message not found")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrInternal indicates that an internal invariant was violated.
	ErrInternal = New("internal error")
)

// sentinelKinds maps each sentinel to its kind. Order matters only for
// readability; lookups walk the chain with errors.Is.
var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrSessionNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrUserNotInSession, KindNotFound},
	{ErrNotLocked, KindNotFound},
	{ErrCommentNotFound, KindNotFound},
	{ErrMessageNotFound, KindNotFound},
	{ErrNotInCall, KindNotFound},
	{ErrAlreadyJoined, KindConflict},
	{ErrFileLocked, KindConflict},
	{ErrAlreadyLocked, KindConflict},
	{ErrLockedByOther, KindConflict},
	{ErrStaleOperation, KindConflict},
	{ErrScreenShareActive, KindConflict},
	{ErrSessionFull, KindPolicyDenied},
	{ErrApprovalRequired, KindPolicyDenied},
	{ErrPermissionDenied, KindPolicyDenied},
	{ErrNotAllowed, KindPolicyDenied},
	{ErrSessionInactive, KindInvalidState},
	{ErrNoActiveCall, KindInvalidState},
	{ErrCallActive, KindInvalidState},
	{ErrInvalidInput, KindInvalid},
	{ErrInternal, KindInternal},
}

// CoworkError is the base interface for all cowork errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type CoworkError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Kind returns how a caller should react to this error.
	Kind() Kind

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed after the caller
	// re-synchronizes its view of the session.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	kind       Kind
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Kind returns the explicit kind, or the kind of the wrapped sentinel.
func (e *baseError) Kind() Kind {
	if e.kind != KindNone {
		return e.kind
	}
	if k := sentinelKind(e.cause); k != KindNone {
		return k
	}
	return KindInternal
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents a failed session operation.
//
// Example:
//
//	err := errors.NewSessionError("join", errors.ErrSessionFull).WithSessionID("s1").WithUserID("carol")
//	fmt.Println(err) // "session error [session=s1, user=carol]: join: session is full"
type SessionError struct {
	baseError
	SessionID string
	UserID    string
}

// NewSessionError creates a new SessionError. The kind is derived from cause.
func NewSessionError(operation string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    operation,
			cause:      cause,
			severity:   SeverityInfo,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithUserID adds the acting user to the error context.
func (e *SessionError) WithUserID(id string) *SessionError {
	e.UserID = id
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SessionError) WithRetryable(r bool) *SessionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.UserID != "" {
		parts = append(parts, fmt.Sprintf("user=%s", e.UserID))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	_, ok := target.(*SessionError)
	return ok
}

// LockError describes a lock or edit conflict on a single file.
// Clients use File and Holder to explain the conflict and offer a retry.
//
// Example:
//
//	err := errors.NewLockError(errors.ErrFileLocked, "main.rs", "alice", "bob")
//	fmt.Println(err) // "lock error [file=main.rs, holder=alice, requester=bob]: file is locked by another user"
type LockError struct {
	baseError
	File      string
	Holder    string
	Requester string
}

// NewLockError creates a LockError wrapping one of the lock sentinels.
func NewLockError(cause error, file, holder, requester string) *LockError {
	return &LockError{
		baseError: baseError{
			message:    "lock error",
			cause:      cause,
			severity:   SeverityInfo,
			retryable:  true,
			userFacing: true,
		},
		File:      file,
		Holder:    holder,
		Requester: requester,
	}
}

// WithRetryable overrides whether the caller may retry.
func (e *LockError) WithRetryable(r bool) *LockError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	parts := []string{fmt.Sprintf("file=%s", e.File)}
	if e.Holder != "" {
		parts = append(parts, fmt.Sprintf("holder=%s", e.Holder))
	}
	if e.Requester != "" {
		parts = append(parts, fmt.Sprintf("requester=%s", e.Requester))
	}
	prefix := fmt.Sprintf("lock error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	_, ok := target.(*LockError)
	return ok
}

// PermissionError reports an action the participant's level does not allow.
type PermissionError struct {
	baseError
	UserID string
	Level  string
	Action string
}

// NewPermissionError creates a PermissionError.
func NewPermissionError(userID, level, action string) *PermissionError {
	return &PermissionError{
		baseError: baseError{
			message:    fmt.Sprintf("%s (%s) may not %s", userID, level, action),
			cause:      ErrPermissionDenied,
			kind:       KindPolicyDenied,
			severity:   SeverityWarning,
			userFacing: true,
		},
		UserID: userID,
		Level:  level,
		Action: action,
	}
}

// Is checks if this error matches the target.
func (e *PermissionError) Is(target error) bool {
	_, ok := target.(*PermissionError)
	return ok
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("comment", "c-1").WithCause(errors.ErrCommentNotFound)
//	fmt.Println(err) // "comment 'c-1' not found: comment not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			kind:       KindNotFound,
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("position must not be negative").WithField("position").WithValue(-1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			kind:       KindInvalid,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	if len(parts) > 0 {
		return fmt.Sprintf("validation error [%s]: %s", strings.Join(parts, ", "), e.message)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// KindOf returns the kind of err. Errors implementing CoworkError report their
// own kind, bare sentinels are looked up, everything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var coworkErr CoworkError
	if As(err, &coworkErr) {
		return coworkErr.Kind()
	}
	if k := sentinelKind(err); k != KindNone {
		return k
	}
	return KindInternal
}

// sentinelKind finds the first sentinel in err's chain.
func sentinelKind(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, s := range sentinelKinds {
		if Is(err, s.err) {
			return s.kind
		}
	}
	return KindNone
}

// IsRetryable returns true if the caller may retry after re-synchronizing.
// Lock conflicts and stale operations are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var coworkErr CoworkError
	if As(err, &coworkErr) && coworkErr.IsRetryable() {
		return true
	}

	return Is(err, ErrFileLocked) || Is(err, ErrAlreadyLocked) || Is(err, ErrStaleOperation)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var coworkErr CoworkError
	if As(err, &coworkErr) {
		return coworkErr.IsUserFacing()
	}

	k := sentinelKind(err)
	return k != KindNone && k != KindInternal
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement CoworkError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var coworkErr CoworkError
	if As(err, &coworkErr) {
		return coworkErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
