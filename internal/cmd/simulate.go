package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cowork/internal/coordination"
	"github.com/Iron-Ham/cowork/internal/render"
	"github.com/Iron-Ham/cowork/internal/scenario"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Drive a session from a scenario file",
	Long: `Simulate runs every step of a scenario file against a fresh
coordination hub built from the current configuration, then reports which
steps behaved as expected.

Envelopes go to the configured broadcasters, so a 'cowork relay' in
another terminal shows the session live when the redis sink is enabled.

Examples:
  cowork simulate review.yaml
  cowork simulate review.yaml --feed
  COWORK_BROADCAST_SINKS=redis cowork simulate review.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

var (
	simulateJSON bool
	simulateFeed bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "Print the result as JSON")
	simulateCmd.Flags().BoolVar(&simulateFeed, "feed", false, "Show the final roster and activity feed")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx := cmd.Context()
	hub, err := coordination.NewHub(ctx, coordination.Config{Settings: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = hub.Close() }()
	if err := hub.Start(ctx); err != nil {
		return err
	}

	res, err := scenario.Run(ctx, hub, sc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := render.Width(os.Stdout)
	if simulateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprint(out, render.Result(res, width))
		if simulateFeed && res.SessionID != "" {
			if err := printSession(cmd, hub, res.SessionID, width); err != nil {
				return err
			}
		}
	}

	if failed := len(res.Failures()); failed > 0 {
		return fmt.Errorf("%d of %d steps did not behave as expected", failed, len(res.Steps))
	}
	return nil
}

func printSession(cmd *cobra.Command, hub *coordination.Hub, sessionID string, width int) error {
	snap, err := hub.Manager().Get(sessionID)
	if err != nil {
		return err
	}
	events, err := hub.Manager().Activity(sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, render.Session(snap, width))
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, render.Feed(events, width))
	return nil
}
