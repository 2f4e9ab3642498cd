// Package oplog records the ordered edit operations of a session.
//
// Every file has its own gapless sequence: the first operation on a file gets
// version 0, the next version 1, and so on. Versions are assigned at append
// time, so two operations on the same file can never share a version.
package oplog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/cowork/internal/errors"
)

// Kind is the type of an edit.
type Kind string

const (
	Insert  Kind = "insert"
	Delete  Kind = "delete"
	Replace Kind = "replace"
)

// IsValid returns true if the kind is a recognized value.
func (k Kind) IsValid() bool {
	switch k {
	case Insert, Delete, Replace:
		return true
	}
	return false
}

// Operation is one edit to one file.
type Operation struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	File      string `json:"file"`
	Kind      Kind   `json:"kind"`
	Position  int    `json:"position"`
	Length    int    `json:"length,omitempty"`
	Text      string `json:"text,omitempty"`
	// BaseVersion is the version the author last saw. When set, the append
	// is rejected unless it equals the file's next version.
	BaseVersion *int      `json:"base_version,omitempty"`
	Version     int       `json:"version"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Validate checks the operation's shape without regard to log state.
func (op Operation) Validate() error {
	switch {
	case op.File == "":
		return errors.NewValidationError("operation file must not be empty").WithField("file")
	case !op.Kind.IsValid():
		return errors.NewValidationError("unknown operation kind").WithField("kind").WithValue(op.Kind)
	case op.Position < 0:
		return errors.NewValidationError("position must not be negative").WithField("position").WithValue(op.Position)
	case op.Length < 0:
		return errors.NewValidationError("length must not be negative").WithField("length").WithValue(op.Length)
	case (op.Kind == Delete || op.Kind == Replace) && op.Length == 0:
		return errors.NewValidationError(fmt.Sprintf("%s requires a length", op.Kind)).WithField("length")
	case (op.Kind == Insert || op.Kind == Replace) && op.Text == "":
		return errors.NewValidationError(fmt.Sprintf("%s requires text", op.Kind)).WithField("text")
	}
	return nil
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source used for AppliedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log stores the operation sequences of one session.
type Log struct {
	mu    sync.RWMutex
	files map[string][]Operation
	now   func() time.Time
}

// NewLog creates an empty Log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		files: make(map[string][]Operation),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append assigns the next version for op.File, stamps AppliedAt and stores a copy.
// The stored operation is returned.
func (l *Log) Append(op Operation) (Operation, error) {
	if err := op.Validate(); err != nil {
		return Operation{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := len(l.files[op.File])
	if op.BaseVersion != nil && *op.BaseVersion != next {
		return Operation{}, fmt.Errorf("%w: %s at version %d, operation based on %d",
			errors.ErrStaleOperation, op.File, next, *op.BaseVersion)
	}

	op.Version = next
	op.AppliedAt = l.now()
	if op.BaseVersion != nil {
		base := *op.BaseVersion
		op.BaseVersion = &base
	}
	l.files[op.File] = append(l.files[op.File], op)
	return copyOp(op), nil
}

// Operations returns every operation on file in version order.
func (l *Log) Operations(file string) []Operation {
	return l.Since(file, 0)
}

// Since returns the operations on file with Version >= version.
func (l *Log) Since(file string, version int) []Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seq := l.files[file]
	if version < 0 {
		version = 0
	}
	if version >= len(seq) {
		return nil
	}
	out := make([]Operation, 0, len(seq)-version)
	for _, op := range seq[version:] {
		out = append(out, copyOp(op))
	}
	return out
}

// Version returns the version the next operation on file will receive.
func (l *Log) Version(file string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.files[file])
}

// Files returns every file with at least one operation, sorted.
func (l *Log) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	files := make([]string, 0, len(l.files))
	for f := range l.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Len returns the total number of operations across all files.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, seq := range l.files {
		n += len(seq)
	}
	return n
}

func copyOp(op Operation) Operation {
	if op.BaseVersion != nil {
		base := *op.BaseVersion
		op.BaseVersion = &base
	}
	return op
}
