// Package presence tracks users and their live status, cursor and selection.
//
// Presence is session-agnostic: a [User] is registered once and shared by every
// session it joins. The [Registry] keeps this hot, high-frequency state behind
// its own lock so cursor traffic never contends with session mutations.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/cowork/internal/errors"
)

// Status is a user's live availability.
type Status string

const (
	Online  Status = "online"
	Away    Status = "away"
	Busy    Status = "busy"
	Offline Status = "offline"
)

// IsValid returns true if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case Online, Away, Busy, Offline:
		return true
	}
	return false
}

// IsActive reports whether users with this status count as active.
// Away and offline users remain participants but are not active.
func (s Status) IsActive() bool {
	return s == Online || s == Busy
}

// Position is a zero-based line/column location in a file.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Cursor is where a user's caret sits.
type Cursor struct {
	File string   `json:"file"`
	At   Position `json:"at"`
}

// Selection is a highlighted range in one file.
type Selection struct {
	File  string   `json:"file"`
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// CursorUpdate moves a user's cursor and optionally their selection.
// A nil Selection clears any previous selection.
type CursorUpdate struct {
	File      string
	At        Position
	Selection *Selection
}

// User is a known identity and its live presence.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Contact      string     `json:"contact,omitempty"`
	Status       Status     `json:"status"`
	Color        string     `json:"color"`
	Cursor       *Cursor    `json:"cursor,omitempty"`
	Selection    *Selection `json:"selection,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
}

func (u *User) clone() User {
	c := *u
	if u.Cursor != nil {
		cur := *u.Cursor
		c.Cursor = &cur
	}
	if u.Selection != nil {
		sel := *u.Selection
		c.Selection = &sel
	}
	return c
}

// palette holds the display colors handed out in registration order.
var palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFA94D", "#DDA0DD", "#98D8C8", "#F7DC6F",
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry holds every known user. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	users     map[string]*User
	nextColor int
	now       func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		users: make(map[string]*User),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates the user on first sight and marks them online.
// Known users keep their color; a non-empty name or contact replaces the old one.
func (r *Registry) Register(id, name, contact string) (User, error) {
	if id == "" {
		return User{}, errors.NewValidationError("user id must not be empty").WithField("id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		u = &User{
			ID:    id,
			Name:  name,
			Color: palette[r.nextColor%len(palette)],
		}
		if u.Name == "" {
			u.Name = id
		}
		r.nextColor++
		r.users[id] = u
	}
	if ok && name != "" {
		u.Name = name
	}
	if contact != "" {
		u.Contact = contact
	}
	u.Status = Online
	u.LastActivity = r.now()
	return u.clone(), nil
}

// Get returns a copy of the user.
func (r *Registry) Get(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

// Users returns copies of the requested users in the given order, skipping unknown ids.
func (r *Registry) Users(ids []string) []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u.clone())
		}
	}
	return out
}

// All returns copies of every user sorted by ID.
func (r *Registry) All() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdatePresence sets the user's status and refreshes last activity.
func (r *Registry) UpdatePresence(id string, status Status) (User, error) {
	if !status.IsValid() {
		return User{}, errors.NewValidationError("unknown presence status").WithField("status").WithValue(status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.lookupLocked(id)
	if err != nil {
		return User{}, err
	}
	u.Status = status
	u.LastActivity = r.now()
	return u.clone(), nil
}

// UpdateCursor records the user's current file, cursor and selection.
func (r *Registry) UpdateCursor(id string, upd CursorUpdate) (User, error) {
	if upd.At.Line < 0 || upd.At.Column < 0 {
		return User{}, errors.NewValidationError("cursor position must not be negative").WithField("at").WithValue(upd.At)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.lookupLocked(id)
	if err != nil {
		return User{}, err
	}
	u.Cursor = &Cursor{File: upd.File, At: upd.At}
	if upd.Selection != nil {
		sel := *upd.Selection
		if sel.File == "" {
			sel.File = upd.File
		}
		u.Selection = &sel
	} else {
		u.Selection = nil
	}
	u.LastActivity = r.now()
	return u.clone(), nil
}

// Touch refreshes the user's last activity without changing anything else.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	u.LastActivity = r.now()
	return nil
}

func (r *Registry) lookupLocked(id string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user", id).WithCause(errors.ErrUserNotFound)
	}
	return u, nil
}
