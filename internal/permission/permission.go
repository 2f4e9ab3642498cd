// Package permission maps participant levels to the actions they may take
// inside a collaboration session.
package permission

// Level is a participant's permission level within one session.
type Level string

const (
	Owner     Level = "owner"
	Editor    Level = "editor"
	Commenter Level = "commenter"
	Viewer    Level = "viewer"
)

// Action is something a participant asks the core to do.
type Action string

const (
	ActionRead        Action = "read"
	ActionComment     Action = "comment"
	ActionReview      Action = "review"
	ActionEdit        Action = "edit"
	ActionLock        Action = "lock"
	ActionChat        Action = "chat"
	ActionCall        Action = "call"
	ActionShareScreen Action = "share_screen"
	ActionInvite      Action = "invite"
	ActionEndSession  Action = "end_session"
)

// Can reports whether level allows action.
func Can(level Level, action Action) bool {
	switch level {
	case Owner:
		return true
	case Editor:
		return action != ActionEndSession
	case Commenter:
		switch action {
		case ActionRead, ActionComment, ActionReview, ActionChat, ActionCall:
			return true
		}
		return false
	case Viewer:
		return action == ActionRead || action == ActionChat || action == ActionCall
	default:
		return false
	}
}

// Normalize parses a level name, defaulting to Viewer.
func Normalize(level string) Level {
	switch Level(level) {
	case Owner, Editor, Commenter, Viewer:
		return Level(level)
	default:
		return Viewer
	}
}

// IsValid returns true if the level is a recognized value.
func (l Level) IsValid() bool {
	switch l {
	case Owner, Editor, Commenter, Viewer:
		return true
	}
	return false
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}
