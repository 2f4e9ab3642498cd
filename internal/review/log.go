// Package review records review verdicts submitted during a session.
//
// The log is append-only. When a reviewer submits more than once, the newest
// submission is authoritative for that reviewer while older ones stay in the
// history.
package review

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cowork/internal/errors"
)

// Option configures a Log
type Option func(*Log)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log is the review history of one session
type Log struct {
	mu        sync.RWMutex
	sessionID string
	reviews   []Review
	now       func() time.Time
}

// NewLog creates an empty review log for sessionID
func NewLog(sessionID string, opts ...Option) *Log {
	l := &Log{sessionID: sessionID, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit appends a review. An empty status defaults to pending.
func (l *Log) Submit(sub Submission) (Review, error) {
	if sub.Reviewer == "" {
		return Review{}, errors.NewValidationError("reviewer must not be empty").WithField("reviewer")
	}
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	if !sub.Status.IsValid() {
		return Review{}, errors.NewValidationError("unknown review status").WithField("status").WithValue(sub.Status)
	}

	r := Review{
		ID:          uuid.NewString(),
		SessionID:   l.sessionID,
		Reviewer:    sub.Reviewer,
		Files:       slices.Clone(sub.Files),
		CommentIDs:  slices.Clone(sub.CommentIDs),
		Status:      sub.Status,
		Summary:     sub.Summary,
		SubmittedAt: l.now(),
	}

	l.mu.Lock()
	l.reviews = append(l.reviews, r)
	l.mu.Unlock()

	return clone(r), nil
}

// All returns every review in submission order
func (l *Log) All() []Review {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Review, len(l.reviews))
	for i, r := range l.reviews {
		out[i] = clone(r)
	}
	return out
}

// ByReviewer returns the reviews submitted by reviewer, oldest first
func (l *Log) ByReviewer(reviewer string) []Review {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Review
	for _, r := range l.reviews {
		if r.Reviewer == reviewer {
			out = append(out, clone(r))
		}
	}
	return out
}

// Latest returns the newest review of every reviewer
func (l *Log) Latest() map[string]Review {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Review)
	for _, r := range l.reviews {
		out[r.Reviewer] = clone(r)
	}
	return out
}

// LatestSorted returns Latest ordered by reviewer
func (l *Log) LatestSorted() []Review {
	latest := l.Latest()
	out := make([]Review, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reviewer < out[j].Reviewer })
	return out
}

// Verdict aggregates the latest review of every reviewer. The heaviest
// status wins, so a single rejection outweighs any number of approvals.
// An empty log is pending.
func (l *Log) Verdict() Status {
	latest := l.Latest()
	if len(latest) == 0 {
		return StatusPending
	}
	verdict := StatusApproved
	for _, r := range latest {
		if r.Status.Weight() > verdict.Weight() {
			verdict = r.Status
		}
	}
	return verdict
}

// Len returns the number of submitted reviews
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.reviews)
}

func clone(r Review) Review {
	r.Files = slices.Clone(r.Files)
	r.CommentIDs = slices.Clone(r.CommentIDs)
	return r
}
