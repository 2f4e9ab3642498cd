// Package call tracks the single voice/video call a session may have in progress.
//
// A call is ephemeral: stopping it discards all state and no call history is
// kept. At most one participant may share their screen at a time.
package call

import (
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/cowork/internal/errors"
)

// Participant is one user's media state within a call.
type Participant struct {
	UserID        string `json:"user_id"`
	Audio         bool   `json:"audio"`
	Video         bool   `json:"video"`
	ScreenSharing bool   `json:"screen_sharing"`
}

// Snapshot is a point-in-time copy of a call.
type Snapshot struct {
	SessionID    string        `json:"session_id"`
	Active       bool          `json:"active"`
	StartedAt    time.Time     `json:"started_at"`
	Recording    bool          `json:"recording"`
	Participants []Participant `json:"participants"`
}

// HasVideo reports whether any participant has video enabled.
func (s Snapshot) HasVideo() bool {
	for _, p := range s.Participants {
		if p.Video {
			return true
		}
	}
	return false
}

// Sharer returns the user sharing their screen, if any.
func (s Snapshot) Sharer() (string, bool) {
	for _, p := range s.Participants {
		if p.ScreenSharing {
			return p.UserID, true
		}
	}
	return "", false
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// State holds the call of one session, if any.
type State struct {
	mu        sync.RWMutex
	sessionID string
	active    *Snapshot
	now       func() time.Time
}

// NewState creates a call holder with no call in progress.
func NewState(sessionID string, opts ...Option) *State {
	s := &State{sessionID: sessionID, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a call with starter as the first participant.
func (s *State) Start(starter string, audio, video, recording bool) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return Snapshot{}, errors.ErrCallActive
	}
	s.active = &Snapshot{
		SessionID:    s.sessionID,
		Active:       true,
		StartedAt:    s.now(),
		Recording:    recording,
		Participants: []Participant{{UserID: starter, Audio: audio, Video: video}},
	}
	return s.copyLocked(), nil
}

// Join adds userID to the call, or updates their media if already present.
func (s *State) Join(userID string, audio, video bool) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return Snapshot{}, errors.ErrNoActiveCall
	}
	if p := s.findLocked(userID); p != nil {
		p.Audio, p.Video = audio, video
	} else {
		s.active.Participants = append(s.active.Participants, Participant{UserID: userID, Audio: audio, Video: video})
	}
	return s.copyLocked(), nil
}

// Leave removes userID from the call. Returns false if there is no call
// or the user is not in it. The call stays up even when empty; only Stop
// ends it.
func (s *State) Leave(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return false
	}
	i := slices.IndexFunc(s.active.Participants, func(p Participant) bool { return p.UserID == userID })
	if i < 0 {
		return false
	}
	s.active.Participants = slices.Delete(s.active.Participants, i, i+1)
	return true
}

// SetMedia changes userID's audio and video flags.
func (s *State) SetMedia(userID string, audio, video bool) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participantLocked(userID)
	if err != nil {
		return Snapshot{}, err
	}
	p.Audio, p.Video = audio, video
	return s.copyLocked(), nil
}

// StartScreenShare marks userID as sharing. Fails with ErrScreenShareActive
// when someone else is already sharing.
func (s *State) StartScreenShare(userID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participantLocked(userID)
	if err != nil {
		return Snapshot{}, err
	}
	for _, other := range s.active.Participants {
		if other.ScreenSharing && other.UserID != userID {
			return Snapshot{}, errors.Wrapf(errors.ErrScreenShareActive, "%s is sharing", other.UserID)
		}
	}
	p.ScreenSharing = true
	return s.copyLocked(), nil
}

// StopScreenShare clears userID's sharing flag. Returns false if they were not sharing.
func (s *State) StopScreenShare(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return false
	}
	p := s.findLocked(userID)
	if p == nil || !p.ScreenSharing {
		return false
	}
	p.ScreenSharing = false
	return true
}

// Stop ends the call and discards its state. Returns the final snapshot and
// false if there was no call.
func (s *State) Stop() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return Snapshot{}, false
	}
	final := s.copyLocked()
	final.Active = false
	s.active = nil
	return final, true
}

// Current returns the call in progress, if any.
func (s *State) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == nil {
		return Snapshot{}, false
	}
	return s.copyLocked(), true
}

// Active reports whether a call is in progress.
func (s *State) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// InCall reports whether userID is a participant of the call in progress.
func (s *State) InCall(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil && s.findLocked(userID) != nil
}

func (s *State) participantLocked(userID string) (*Participant, error) {
	if s.active == nil {
		return nil, errors.ErrNoActiveCall
	}
	p := s.findLocked(userID)
	if p == nil {
		return nil, errors.Wrapf(errors.ErrNotInCall, "%s", userID)
	}
	return p, nil
}

func (s *State) findLocked(userID string) *Participant {
	for i := range s.active.Participants {
		if s.active.Participants[i].UserID == userID {
			return &s.active.Participants[i]
		}
	}
	return nil
}

func (s *State) copyLocked() Snapshot {
	out := *s.active
	out.Participants = slices.Clone(s.active.Participants)
	return out
}
