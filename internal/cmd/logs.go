package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/cowork/internal/logging"
	"github.com/Iron-Ham/cowork/internal/render"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View cowork logs",
	Long: `View and filter the JSON log written to logging.dir.

Examples:
  # Last 50 entries
  cowork logs

  # Everything one session logged
  cowork logs -s 3f2c... -n 0

  # Warnings from the last hour, then keep following
  cowork logs --level warn --since 1h -f`,
	RunE: runLogs,
}

var (
	logsDir       string
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     time.Duration
	logsSessionID string
	logsUserID    string
	logsComponent string
	logsContains  string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default: logging.dir)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Minimum level (debug/info/warn/error)")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "Only entries newer than this (e.g. 1h, 30m)")
	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Only entries for this session")
	logsCmd.Flags().StringVarP(&logsUserID, "user", "u", "", "Only entries for this user")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only entries from this component")
	logsCmd.Flags().StringVar(&logsContains, "contains", "", "Only entries whose message contains this text")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		return fmt.Errorf("no log directory: set logging.dir or pass --dir")
	}

	filter := logging.Filter{
		Level:     logsLevel,
		SessionID: logsSessionID,
		UserID:    logsUserID,
		Component: logsComponent,
		Contains:  logsContains,
	}
	if logsSince > 0 {
		filter.Since = time.Now().Add(-logsSince)
	}

	entries, err := logging.ReadDir(dir)
	if err != nil {
		return err
	}
	entries = filter.Apply(entries)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		_, _ = fmt.Fprintln(out, render.LogEntry(e))
	}

	if !logsFollow {
		return nil
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return followLogs(ctx, dir, filter, func(e logging.Entry) {
		_, _ = fmt.Fprintln(out, render.LogEntry(e))
	})
}

// followLogs calls fn for each matching entry appended to the log file
// until ctx is done. A recreated file (rotation) is read from the start.
func followLogs(ctx context.Context, dir string, filter logging.Filter, fn func(logging.Entry)) error {
	path := filepath.Join(dir, logging.LogFileName)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	t := &tailer{path: path}
	if err := t.open(io.SeekEnd); err != nil {
		return err
	}
	defer t.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching logs: %w", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				t.close()
				if err := t.open(io.SeekStart); err != nil {
					return err
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			entries, err := t.drain()
			if err != nil {
				return err
			}
			for _, e := range filter.Apply(entries) {
				fn(e)
			}
		}
	}
}

// tailer reads complete lines appended to a file.
type tailer struct {
	path    string
	file    *os.File
	pending []byte
}

func (t *tailer) open(whence int) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if _, err := f.Seek(0, whence); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	t.file = f
	t.pending = nil
	return nil
}

func (t *tailer) close() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
}

// drain parses every complete line written since the last call. A trailing
// partial line is kept for the next call.
func (t *tailer) drain() ([]logging.Entry, error) {
	data, err := io.ReadAll(t.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	t.pending = append(t.pending, data...)

	end := bytes.LastIndexByte(t.pending, '\n')
	if end < 0 {
		return nil, nil
	}
	complete := t.pending[:end+1]
	t.pending = append([]byte(nil), t.pending[end+1:]...)
	return logging.Read(bytes.NewReader(complete))
}
