package filelock

import "time"

// Lock is an exclusive claim on one file.
type Lock struct {
	File     string    `json:"file"`
	Holder   string    `json:"holder"`
	LockedAt time.Time `json:"locked_at"`
}

// Option configures a Table.
type Option func(*Table)

// WithClock overrides the time source used for LockedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		t.now = now
	}
}
