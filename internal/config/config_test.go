package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Session.DefaultMode != "live_share" {
		t.Errorf("Session.DefaultMode = %q, want %q", cfg.Session.DefaultMode, "live_share")
	}
	if cfg.Session.MaxParticipants != 10 {
		t.Errorf("Session.MaxParticipants = %d, want 10", cfg.Session.MaxParticipants)
	}
	if !cfg.Session.AllowVoiceVideo {
		t.Error("Session.AllowVoiceVideo should be true by default")
	}
	if !cfg.Session.AllowScreenShare {
		t.Error("Session.AllowScreenShare should be true by default")
	}
	if cfg.Session.RequireApproval {
		t.Error("Session.RequireApproval should be false by default")
	}
	if !cfg.Session.EnforcePermissions {
		t.Error("Session.EnforcePermissions should be true by default")
	}
	if cfg.Session.ActivityCapacity != 100 {
		t.Errorf("Session.ActivityCapacity = %d, want 100", cfg.Session.ActivityCapacity)
	}

	if cfg.Broadcast.Redis.ChannelPrefix != "cowork:session:" {
		t.Errorf("Broadcast.Redis.ChannelPrefix = %q", cfg.Broadcast.Redis.ChannelPrefix)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestPresenceConfig_Durations(t *testing.T) {
	cfg := PresenceConfig{HeartbeatTimeoutSeconds: 30, SweepIntervalSeconds: 5}

	if got := cfg.HeartbeatTimeout(); got != 30*time.Second {
		t.Errorf("HeartbeatTimeout() = %v, want 30s", got)
	}
	if got := cfg.SweepInterval(); got != 5*time.Second {
		t.Errorf("SweepInterval() = %v, want 5s", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "cowork") {
			t.Errorf("ConfigDir() = %q", got)
		}
	})

	t.Run("falls back to home", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		if got := ConfigDir(); got != filepath.Join(home, ".config", "cowork") {
			t.Errorf("ConfigDir() = %q", got)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigFile(); got != filepath.Join("/tmp/xdg", "cowork", "config.yaml") {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestLoad(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("session.max_participants", 2)
	viper.Set("broadcast.sinks", []string{"log", "bus"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.MaxParticipants != 2 {
		t.Errorf("MaxParticipants = %d, want 2", cfg.Session.MaxParticipants)
	}
	if len(cfg.Broadcast.Sinks) != 2 {
		t.Errorf("Sinks = %v, want [log bus]", cfg.Broadcast.Sinks)
	}
	if cfg.Presence.HeartbeatTimeoutSeconds != 30 {
		t.Errorf("HeartbeatTimeoutSeconds = %d, want default 30", cfg.Presence.HeartbeatTimeoutSeconds)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("session.max_participants", 0)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject max_participants=0")
	}
	if got := Get(); got.Session.MaxParticipants != 10 {
		t.Errorf("Get() should fall back to defaults, got MaxParticipants=%d", got.Session.MaxParticipants)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "session:\n  max_participants: 4\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.MaxParticipants != 4 {
		t.Errorf("MaxParticipants = %d, want 4", cfg.Session.MaxParticipants)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestHandleChange(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("logging.level", "warn")

	tests := []struct {
		name     string
		op       fsnotify.Op
		wantCall bool
	}{
		{"write reloads", fsnotify.Write, true},
		{"create reloads", fsnotify.Create, true},
		{"chmod ignored", fsnotify.Chmod, false},
		{"remove ignored", fsnotify.Remove, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handleChange(fsnotify.Event{Name: "config.yaml", Op: tt.op}, func(cfg *Config, err error) {
				called = true
				if err != nil {
					t.Fatalf("reload error = %v", err)
				}
				if cfg.Logging.Level != "warn" {
					t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
				}
			})
			if called != tt.wantCall {
				t.Errorf("called = %v, want %v", called, tt.wantCall)
			}
		})
	}
}

func TestWatch_NoConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	// Must not panic or start a watcher without a config file.
	Watch(func(*Config, error) { t.Error("reload should not fire") })
}
