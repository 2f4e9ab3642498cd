// Package comment stores threaded review comments anchored to file lines.
//
// Comments live in an arena keyed by ID. A reply records its parent's ID and
// the parent lists its replies' IDs in order, so threads of any depth are
// walked without pointers between comments. Comments are never deleted;
// resolving a comment only flips its Resolved flag.
package comment

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/reaction"
)

// Comment is one note on a file line, or a reply to another comment.
type Comment struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Author    string       `json:"author"`
	File      string       `json:"file"`
	Line      int          `json:"line"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	Resolved  bool         `json:"resolved"`
	ParentID  string       `json:"parent_id,omitempty"`
	Children  []string     `json:"children,omitempty"`
	Reactions reaction.Set `json:"reactions"`
}

// IsReply returns true if the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != ""
}

func (c *Comment) clone() Comment {
	out := *c
	out.Children = append([]string(nil), c.Children...)
	out.Reactions = c.Reactions.Clone()
	return out
}

// Option configures a Thread.
type Option func(*Thread)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Thread) { t.now = now }
}

// WithIDGenerator overrides how comment IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(t *Thread) { t.newID = gen }
}

// Thread holds every comment of one session.
type Thread struct {
	mu        sync.RWMutex
	sessionID string
	arena     map[string]*Comment
	roots     []string
	now       func() time.Time
	newID     func() string
}

// NewThread creates an empty comment store for sessionID.
func NewThread(sessionID string, opts ...Option) *Thread {
	t := &Thread{
		sessionID: sessionID,
		arena:     make(map[string]*Comment),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add creates a top-level comment on file at line.
func (t *Thread) Add(author, file string, line int, content string) (Comment, error) {
	if err := validate(content); err != nil {
		return Comment{}, err
	}
	if line < 0 {
		return Comment{}, errors.NewValidationError("line must not be negative").WithField("line").WithValue(line)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c := &Comment{
		ID:        t.newID(),
		SessionID: t.sessionID,
		Author:    author,
		File:      file,
		Line:      line,
		Content:   content,
		CreatedAt: t.now(),
	}
	t.arena[c.ID] = c
	t.roots = append(t.roots, c.ID)
	return c.clone(), nil
}

// Reply answers parentID. The reply inherits the parent's file and line.
func (t *Thread) Reply(parentID, author, content string) (Comment, error) {
	if err := validate(content); err != nil {
		return Comment{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent, err := t.lookupLocked(parentID)
	if err != nil {
		return Comment{}, err
	}
	c := &Comment{
		ID:        t.newID(),
		SessionID: t.sessionID,
		Author:    author,
		File:      parent.File,
		Line:      parent.Line,
		Content:   content,
		CreatedAt: t.now(),
		ParentID:  parent.ID,
	}
	t.arena[c.ID] = c
	parent.Children = append(parent.Children, c.ID)
	return c.clone(), nil
}

// Get returns a copy of the comment with id.
func (t *Thread) Get(id string) (Comment, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, err := t.lookupLocked(id)
	if err != nil {
		return Comment{}, err
	}
	return c.clone(), nil
}

// Find searches the thread rooted at rootID depth-first for targetID.
// Returns false if either comment is unknown or target is not under root.
func (t *Thread) Find(rootID, targetID string) (Comment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, ok := t.arena[rootID]
	if !ok {
		return Comment{}, false
	}
	found := t.findLocked(root, targetID)
	if found == nil {
		return Comment{}, false
	}
	return found.clone(), true
}

func (t *Thread) findLocked(c *Comment, targetID string) *Comment {
	if c.ID == targetID {
		return c
	}
	for _, childID := range c.Children {
		if child, ok := t.arena[childID]; ok {
			if found := t.findLocked(child, targetID); found != nil {
				return found
			}
		}
	}
	return nil
}

// Walk visits the thread rooted at rootID in pre-order, passing each
// comment's depth (root is 0). Returning false from fn stops the walk.
func (t *Thread) Walk(rootID string, fn func(c Comment, depth int) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.lookupLocked(rootID)
	if err != nil {
		return err
	}
	t.walkLocked(root, 0, fn)
	return nil
}

func (t *Thread) walkLocked(c *Comment, depth int, fn func(Comment, int) bool) bool {
	if !fn(c.clone(), depth) {
		return false
	}
	for _, childID := range c.Children {
		if child, ok := t.arena[childID]; ok {
			if !t.walkLocked(child, depth+1, fn) {
				return false
			}
		}
	}
	return true
}

// Resolve sets the comment's resolved flag.
func (t *Thread) Resolve(id string, resolved bool) (Comment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.lookupLocked(id)
	if err != nil {
		return Comment{}, err
	}
	c.Resolved = resolved
	return c.clone(), nil
}

// React adds userID's symbol reaction. Adding the same reaction twice is a no-op.
func (t *Thread) React(id, userID, symbol string) (Comment, error) {
	if symbol == "" {
		return Comment{}, errors.NewValidationError("reaction must not be empty").WithField("symbol")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.lookupLocked(id)
	if err != nil {
		return Comment{}, err
	}
	c.Reactions.Add(symbol, userID)
	return c.clone(), nil
}

// Unreact removes userID's symbol reaction.
func (t *Thread) Unreact(id, userID, symbol string) (Comment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.lookupLocked(id)
	if err != nil {
		return Comment{}, err
	}
	c.Reactions.Remove(symbol, userID)
	return c.clone(), nil
}

// Roots returns the top-level comments in creation order.
func (t *Thread) Roots() []Comment {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Comment, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.arena[id].clone())
	}
	return out
}

// ForFile returns the top-level comments on file ordered by line, then creation.
func (t *Thread) ForFile(file string) []Comment {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Comment
	for _, id := range t.roots {
		if c := t.arena[id]; c.File == file {
			out = append(out, c.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// Len returns the number of comments including replies.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.arena)
}

func (t *Thread) lookupLocked(id string) (*Comment, error) {
	c, ok := t.arena[id]
	if !ok {
		return nil, errors.NewNotFoundError("comment", id).WithCause(errors.ErrCommentNotFound)
	}
	return c, nil
}

func validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.NewValidationError("comment must not be empty").WithField("content")
	}
	return nil
}
