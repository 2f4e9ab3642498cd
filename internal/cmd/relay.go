package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cowork/internal/broadcast"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/render"
)

var relayCmd = &cobra.Command{
	Use:   "relay [session-pattern]",
	Short: "Print envelopes published to Redis",
	Long: `Relay subscribes to the Redis channels the redis broadcaster
publishes to and prints every envelope until interrupted.

The optional pattern is a Redis glob matched against session IDs and
defaults to every session.

Examples:
  cowork relay
  cowork relay 'team-*' --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRelay,
}

var relayJSON bool

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().BoolVar(&relayJSON, "json", false, "Print envelopes as JSON lines")
}

func runRelay(cmd *cobra.Command, args []string) error {
	pattern := "*"
	if len(args) == 1 {
		pattern = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := broadcast.NewRedis(ctx, cfg.Broadcast.Redis.URL, cfg.Broadcast.Redis.ChannelPrefix)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	sub, err := r.Subscribe(ctx, pattern)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	width := render.Width(os.Stdout)
	_, _ = fmt.Fprintf(errOut, "Listening on %s (Ctrl-C to stop)\n", r.Channel(pattern))

	enc := json.NewEncoder(out)
	return sub.Each(ctx, func(env event.Envelope) {
		if relayJSON {
			_ = enc.Encode(env)
			return
		}
		_, _ = fmt.Fprintln(out, render.Envelope(env, width))
	}, func(channel string, err error) {
		_, _ = fmt.Fprintf(errOut, "skipping message on %s: %v\n", channel, err)
	})
}
