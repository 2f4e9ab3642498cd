package session

import (
	"time"

	"github.com/Iron-Ham/cowork/internal/call"
	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/filelock"
	"github.com/Iron-Ham/cowork/internal/permission"
	"github.com/Iron-Ham/cowork/internal/presence"
)

// Mode describes what kind of collaboration a session is for.
type Mode string

const (
	ModeLiveShare       Mode = "live_share"
	ModeCodeReview      Mode = "code_review"
	ModePairProgramming Mode = "pair_programming"
	ModeScreenShare     Mode = "screen_share"
	ModeVoiceChat       Mode = "voice_chat"
)

// IsValid returns true if the mode is a recognized value.
func (m Mode) IsValid() bool {
	switch m {
	case ModeLiveShare, ModeCodeReview, ModePairProgramming, ModeScreenShare, ModeVoiceChat:
		return true
	}
	return false
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Settings are the policies of one session, fixed at creation.
type Settings struct {
	MaxParticipants  int  `json:"max_participants" yaml:"max_participants"`
	RequireApproval  bool `json:"require_approval" yaml:"require_approval"`
	AllowScreenShare bool `json:"allow_screen_share" yaml:"allow_screen_share"`
	AllowVoiceVideo  bool `json:"allow_voice_video" yaml:"allow_voice_video"`
	RecordSession    bool `json:"record_session" yaml:"record_session"`
}

// DefaultSettings returns the settings configured for new sessions.
func DefaultSettings(cfg config.SessionConfig) Settings {
	return Settings{
		MaxParticipants:  cfg.MaxParticipants,
		RequireApproval:  cfg.RequireApproval,
		AllowScreenShare: cfg.AllowScreenShare,
		AllowVoiceVideo:  cfg.AllowVoiceVideo,
		RecordSession:    cfg.RecordSession,
	}
}

// Overrides replaces individual settings at creation. Nil fields keep the default.
type Overrides struct {
	MaxParticipants  *int  `yaml:"max_participants"`
	RequireApproval  *bool `yaml:"require_approval"`
	AllowScreenShare *bool `yaml:"allow_screen_share"`
	AllowVoiceVideo  *bool `yaml:"allow_voice_video"`
	RecordSession    *bool `yaml:"record_session"`
}

// Apply returns s with every non-nil override applied.
func (s Settings) Apply(o Overrides) Settings {
	if o.MaxParticipants != nil {
		s.MaxParticipants = *o.MaxParticipants
	}
	if o.RequireApproval != nil {
		s.RequireApproval = *o.RequireApproval
	}
	if o.AllowScreenShare != nil {
		s.AllowScreenShare = *o.AllowScreenShare
	}
	if o.AllowVoiceVideo != nil {
		s.AllowVoiceVideo = *o.AllowVoiceVideo
	}
	if o.RecordSession != nil {
		s.RecordSession = *o.RecordSession
	}
	return s
}

// Identity is who a caller claims to be when creating or joining.
type Identity struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Contact string `yaml:"contact"`
}

// Member is a participant as seen from outside the session.
type Member struct {
	User       presence.User    `json:"user"`
	Permission permission.Level `json:"permission"`
	JoinedAt   time.Time        `json:"joined_at"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Mode         Mode            `json:"mode"`
	OwnerID      string          `json:"owner_id"`
	Active       bool            `json:"active"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	Settings     Settings        `json:"settings"`
	Participants []Member        `json:"participants"`
	Invited      []string        `json:"invited,omitempty"`
	SharedFiles  []string        `json:"shared_files,omitempty"`
	Locks        []filelock.Lock `json:"locks,omitempty"`
	Call         *call.Snapshot  `json:"call,omitempty"`
	Seq          uint64          `json:"seq"` // Last envelope sequence number issued
}

// Member returns the participant with userID.
func (s *Snapshot) Member(userID string) (Member, bool) {
	for _, m := range s.Participants {
		if m.User.ID == userID {
			return m, true
		}
	}
	return Member{}, false
}
