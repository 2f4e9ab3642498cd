// Package config provides CLI commands for managing cowork configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/cowork/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify cowork configuration",
	Long: `View or modify cowork configuration.

Use 'config show' to print the effective configuration and 'config set'
to change a value in the user's config file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  cowork config set session.max_participants 4
  cowork config set broadcast.sinks log,redis
  cowork config set presence.heartbeat_enabled false

The resulting configuration is validated before it is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/cowork/config.yaml.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)
}

// Register adds the config command to parent.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyKind is the value type accepted by a settable key.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindBool
	kindList
)

var settableKeys = map[string]keyKind{
	"session.default_mode":               kindString,
	"session.max_participants":           kindInt,
	"session.require_approval":           kindBool,
	"session.allow_screen_share":         kindBool,
	"session.allow_voice_video":          kindBool,
	"session.record_session":             kindBool,
	"session.enforce_permissions":        kindBool,
	"session.activity_capacity":          kindInt,
	"presence.heartbeat_enabled":         kindBool,
	"presence.heartbeat_timeout_seconds": kindInt,
	"presence.sweep_interval_seconds":    kindInt,
	"broadcast.sinks":                    kindList,
	"broadcast.max_concurrency":          kindInt,
	"broadcast.redis.url":                kindString,
	"broadcast.redis.channel_prefix":     kindString,
	"logging.level":                      kindString,
	"logging.dir":                        kindString,
	"logging.max_size_mb":                kindInt,
	"logging.max_backups":                kindInt,
	"logging.compress":                   kindBool,
}

// SettableKeys returns the keys accepted by 'config set', sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// parseValue converts raw to the type expected by key.
func parseValue(key, raw string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(SettableKeys(), ", "))
	}

	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindList:
		var items []string
		for item := range strings.SplitSeq(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return raw, nil
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := appconfig.Get()

	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		_, _ = fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	prev := viper.Get(key)
	viper.Set(key, value)
	if _, err := appconfig.Load(); err != nil {
		viper.Set(key, prev)
		return fmt.Errorf("refusing to write invalid configuration: %w", err)
	}

	configFile := appconfig.ConfigFile()
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Set %s = %v\n", key, value)
	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'cowork config set' to modify values", configFile)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(appconfig.Default())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	content := "# cowork configuration\n# Every key can be overridden with COWORK_<SECTION>_<KEY>.\n\n" + string(data)
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	_, _ = fmt.Fprintln(out, "\nSearch paths:")
	_, _ = fmt.Fprintf(out, "  1. %s\n", appconfig.ConfigFile())
	_, _ = fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	_, _ = fmt.Fprintln(out, "\nEnvironment variables: COWORK_* (e.g., COWORK_SESSION_MAX_PARTICIPANTS)")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := appconfig.Load(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
	return nil
}
