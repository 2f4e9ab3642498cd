package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/cowork/internal/cmd/config"
	appconfig "github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "cowork",
	Short: "Real-time collaboration session core",
	Long: `Cowork coordinates collaborative editing sessions: who is present,
who holds which file, the ordered edit log, comments, reviews, chat and
calls. Every state change is fanned out to the configured broadcasters.

Use 'cowork simulate' to drive a session from a scenario file and
'cowork relay' to watch envelopes published to Redis.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/cowork/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	config.Register(rootCmd)
}

func initConfig() {
	// Defaults first so they apply even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath(".")
	}

	// COWORK_SESSION_MAX_PARTICIPANTS overrides session.max_participants
	viper.SetEnvPrefix("COWORK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// loadConfig returns the validated configuration. Unlike appconfig.Get it
// does not fall back to defaults, so commands fail loudly on a bad file.
func loadConfig() (*appconfig.Config, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg. Without a log directory
// entries go to stderr, which is only useful at debug level.
func newLogger(cfg appconfig.LoggingConfig) (*logging.Logger, error) {
	if cfg.Dir == "" && logging.ParseLevel(cfg.Level) != logging.LevelDebug {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.Dir, cfg.Level, logging.WithRotation(logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}))
}
