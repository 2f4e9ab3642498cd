// Package scenario runs scripted collaboration sessions described in YAML.
//
// A scenario names its users and lists steps that drive a session manager:
//
//	name: lock then edit
//	users:
//	  - id: alice
//	    name: Alice
//	  - id: bob
//	steps:
//	  - action: create
//	    user: alice
//	    mode: pair_programming
//	  - action: join
//	    user: bob
//	    permission: editor
//	  - action: lock
//	    user: alice
//	    file: main.rs
//	  - action: edit
//	    user: bob
//	    file: main.rs
//	    text: "// hi"
//	    expect_error: conflict
//
// A step with expect_error passes only when it fails with that error kind;
// any other step passes only when it succeeds.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/presence"
	"github.com/Iron-Ham/cowork/internal/session"
)

// Action names a step.
type Action string

const (
	ActionCreate      Action = "create"
	ActionJoin        Action = "join"
	ActionLeave       Action = "leave"
	ActionEnd         Action = "end"
	ActionLock        Action = "lock"
	ActionUnlock      Action = "unlock"
	ActionEdit        Action = "edit"
	ActionCursor      Action = "cursor"
	ActionPresence    Action = "presence"
	ActionComment     Action = "comment"
	ActionReply       Action = "reply"
	ActionReview      Action = "review"
	ActionChat        Action = "chat"
	ActionCallStart   Action = "call_start"
	ActionCallJoin    Action = "call_join"
	ActionCallStop    Action = "call_stop"
	ActionScreenShare Action = "screen_share"
	ActionHeartbeat   Action = "heartbeat"
)

// Actions returns every supported action.
func Actions() []Action {
	return []Action{
		ActionCreate, ActionJoin, ActionLeave, ActionEnd,
		ActionLock, ActionUnlock, ActionEdit, ActionCursor, ActionPresence,
		ActionComment, ActionReply, ActionReview, ActionChat,
		ActionCallStart, ActionCallJoin, ActionCallStop, ActionScreenShare,
		ActionHeartbeat,
	}
}

// IsValid returns true if the action is supported.
func (a Action) IsValid() bool {
	return slices.Contains(Actions(), a)
}

// Scenario is a scripted session.
type Scenario struct {
	// Name is a short title shown in reports
	Name string `yaml:"name"`
	// Description explains what the scenario demonstrates (optional)
	Description string `yaml:"description,omitempty"`
	// Users lists the identities steps refer to by ID
	Users []session.Identity `yaml:"users"`
	// Steps run in order against one manager
	Steps []Step `yaml:"steps"`
}

// Step is one call into the session manager. Which fields matter depends on
// the action.
type Step struct {
	Action Action `yaml:"action"`
	User   string `yaml:"user"`

	// create
	Mode     session.Mode      `yaml:"mode,omitempty"`
	Name     string            `yaml:"name,omitempty"`
	Settings session.Overrides `yaml:"settings,omitempty"`

	// join
	Permission string `yaml:"permission,omitempty"`

	// lock, unlock, edit, cursor, comment
	File string `yaml:"file,omitempty"`

	// edit
	Op          string `yaml:"op,omitempty"`
	Position    int    `yaml:"position,omitempty"`
	Length      int    `yaml:"length,omitempty"`
	Text        string `yaml:"text,omitempty"`
	BaseVersion *int   `yaml:"base_version,omitempty"`

	// cursor
	At presence.Position `yaml:"at,omitempty"`

	// presence, review
	Status string `yaml:"status,omitempty"`

	// comment, reply, chat, review summary
	Line    int    `yaml:"line,omitempty"`
	Content string `yaml:"content,omitempty"`
	Label   string `yaml:"label,omitempty"`  // Names a comment for later replies
	Parent  string `yaml:"parent,omitempty"` // Label of the comment replied to

	// call_start, call_join
	Audio bool `yaml:"audio,omitempty"`
	Video bool `yaml:"video,omitempty"`

	// ExpectError is the error kind the step must fail with, e.g. "conflict"
	ExpectError string `yaml:"expect_error,omitempty"`
	// ExpectVersion is the version an edit must be assigned (optional)
	ExpectVersion *int `yaml:"expect_version,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks that the scenario is well-formed. It does not check that
// steps will succeed.
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.NewValidationError("scenario name is required").WithField("name")
	}
	if len(s.Steps) == 0 {
		return errors.NewValidationError("scenario has no steps").WithField("steps")
	}

	users := make(map[string]bool, len(s.Users))
	for i, u := range s.Users {
		if u.ID == "" {
			return errors.NewValidationError("user id is required").WithField(fmt.Sprintf("users[%d].id", i))
		}
		if users[u.ID] {
			return errors.NewValidationError("duplicate user").WithField(fmt.Sprintf("users[%d].id", i)).WithValue(u.ID)
		}
		users[u.ID] = true
	}

	labels := make(map[string]bool)
	for i, st := range s.Steps {
		field := func(name string) string { return fmt.Sprintf("steps[%d].%s", i, name) }

		if !st.Action.IsValid() {
			return errors.NewValidationError("unknown action").WithField(field("action")).WithValue(st.Action)
		}
		if st.User == "" {
			return errors.NewValidationError("step user is required").WithField(field("user"))
		}
		if len(s.Users) > 0 && !users[st.User] && st.ExpectError == "" {
			return errors.NewValidationError("step refers to an undeclared user").WithField(field("user")).WithValue(st.User)
		}
		if st.ExpectError != "" && errors.ParseKind(st.ExpectError) == errors.KindInternal && st.ExpectError != "internal" {
			return errors.NewValidationError("unknown error kind").WithField(field("expect_error")).WithValue(st.ExpectError)
		}
		if st.Action == ActionReply && !labels[st.Parent] {
			return errors.NewValidationError("reply parent is not a previous comment label").WithField(field("parent")).WithValue(st.Parent)
		}
		if st.Label != "" {
			labels[st.Label] = true
		}
	}
	if s.Steps[0].Action != ActionCreate {
		return errors.NewValidationError("first step must create a session").WithField("steps[0].action")
	}
	return nil
}

// identity returns the declared identity for userID, or a bare one.
func (s *Scenario) identity(userID string) session.Identity {
	for _, u := range s.Users {
		if u.ID == userID {
			return u
		}
	}
	return session.Identity{ID: userID}
}
