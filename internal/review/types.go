package review

import (
	"time"
)

// Status is a reviewer's verdict
type Status string

const (
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusChangesRequested Status = "changes_requested"
	StatusRejected         Status = "rejected"
)

// AllStatuses returns all review statuses
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusApproved,
		StatusChangesRequested,
		StatusRejected,
	}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusChangesRequested, StatusRejected:
		return true
	}
	return false
}

// Weight returns a numeric weight used to aggregate verdicts.
// Higher weight = blocks merging more strongly
func (s Status) Weight() int {
	switch s {
	case StatusRejected:
		return 4
	case StatusChangesRequested:
		return 3
	case StatusPending:
		return 2
	case StatusApproved:
		return 1
	default:
		return 0
	}
}

// Review is one reviewer's submission. Submissions are never edited; a
// reviewer changes their verdict by submitting again.
type Review struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Reviewer    string    `json:"reviewer"`
	Files       []string  `json:"files,omitempty"`
	CommentIDs  []string  `json:"comment_ids,omitempty"` // Comments the review refers to
	Status      Status    `json:"status"`
	Summary     string    `json:"summary,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Submission is the reviewer-supplied part of a Review
type Submission struct {
	Reviewer   string
	Files      []string
	CommentIDs []string
	Status     Status
	Summary    string
}
