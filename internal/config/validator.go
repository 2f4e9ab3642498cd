package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "session.max_participants")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidModes returns the list of valid collaboration modes
func ValidModes() []string {
	return []string{"live_share", "code_review", "pair_programming", "screen_share", "voice_chat"}
}

// ValidSinks returns the list of valid broadcast sinks
func ValidSinks() []string {
	return []string{"log", "bus", "redis"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validatePresence()...)
	errors = append(errors, c.validateBroadcast()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidModes(), c.Session.DefaultMode) {
		errors = append(errors, ValidationError{
			Field:   "session.default_mode",
			Value:   c.Session.DefaultMode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidModes(), ", ")),
		})
	}

	// The owner always occupies one seat
	if c.Session.MaxParticipants < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.max_participants",
			Value:   c.Session.MaxParticipants,
			Message: "must be at least 1",
		})
	}

	const maxParticipants = 1000
	if c.Session.MaxParticipants > maxParticipants {
		errors = append(errors, ValidationError{
			Field:   "session.max_participants",
			Value:   c.Session.MaxParticipants,
			Message: fmt.Sprintf("exceeds maximum of %d", maxParticipants),
		})
	}

	if c.Session.ActivityCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.activity_capacity",
			Value:   c.Session.ActivityCapacity,
			Message: "must be positive",
		})
	}

	return errors
}

// validatePresence validates the PresenceConfig
func (c *Config) validatePresence() []ValidationError {
	var errors []ValidationError

	if !c.Presence.HeartbeatEnabled {
		return nil
	}

	if c.Presence.HeartbeatTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "presence.heartbeat_timeout_seconds",
			Value:   c.Presence.HeartbeatTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Presence.SweepIntervalSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "presence.sweep_interval_seconds",
			Value:   c.Presence.SweepIntervalSeconds,
			Message: "must be positive",
		})
	}
	if c.Presence.SweepIntervalSeconds > 0 && c.Presence.HeartbeatTimeoutSeconds > 0 &&
		c.Presence.SweepIntervalSeconds > c.Presence.HeartbeatTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "presence.sweep_interval_seconds",
			Value:   c.Presence.SweepIntervalSeconds,
			Message: "must not exceed heartbeat_timeout_seconds",
		})
	}

	return errors
}

// validateBroadcast validates the BroadcastConfig
func (c *Config) validateBroadcast() []ValidationError {
	var errors []ValidationError

	for _, sink := range c.Broadcast.Sinks {
		if !slices.Contains(ValidSinks(), sink) {
			errors = append(errors, ValidationError{
				Field:   "broadcast.sinks",
				Value:   sink,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSinks(), ", ")),
			})
		}
	}

	if c.Broadcast.MaxConcurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "broadcast.max_concurrency",
			Value:   c.Broadcast.MaxConcurrency,
			Message: "must be at least 1",
		})
	}

	if slices.Contains(c.Broadcast.Sinks, "redis") {
		u, err := url.Parse(c.Broadcast.Redis.URL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errors = append(errors, ValidationError{
				Field:   "broadcast.redis.url",
				Value:   c.Broadcast.Redis.URL,
				Message: "must be a redis:// or rediss:// URL",
			})
		}
		if c.Broadcast.Redis.ChannelPrefix == "" {
			errors = append(errors, ValidationError{
				Field:   "broadcast.redis.channel_prefix",
				Value:   c.Broadcast.Redis.ChannelPrefix,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
