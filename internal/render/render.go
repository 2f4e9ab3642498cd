// Package render formats sessions, activity feeds and scenario results for
// the terminal.
package render

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/Iron-Ham/cowork/internal/activity"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/logging"
	"github.com/Iron-Ham/cowork/internal/presence"
	"github.com/Iron-Ham/cowork/internal/scenario"
	"github.com/Iron-Ham/cowork/internal/session"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

const timeLayout = "15:04:05"

// Width returns the width of the terminal attached to f, or DefaultWidth.
func Width(f *os.File) int {
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return DefaultWidth
}

// Truncate shortens s to maxWidth visible columns, keeping escape sequences
// intact and ending in "..." when anything was cut.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// Session renders a session header and its participant roster.
func Session(snap session.Snapshot, width int) string {
	var b strings.Builder

	state := passStyle.Render("active")
	if !snap.Active {
		state = mutedStyle.Render("ended")
	}
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(snap.Name), mutedStyle.Render("("+snap.Mode.String()+")"))
	fmt.Fprintf(&b, "%s  %s  started %s\n", mutedStyle.Render(snap.ID), state, snap.StartedAt.Format(timeLayout))

	for _, m := range snap.Participants {
		line := fmt.Sprintf("  %s %s %s",
			statusDot(m.User.Status),
			userStyle(m.User.Color).Render(displayName(m.User)),
			mutedStyle.Render(m.Permission.String()))
		if m.User.ID == snap.OwnerID {
			line += warnStyle.Render(" ★")
		}
		if c := m.User.Cursor; c != nil {
			line += mutedStyle.Render(fmt.Sprintf("  %s:%d:%d", c.File, c.At.Line, c.At.Column))
		}
		b.WriteString(Truncate(line, width) + "\n")
	}

	for _, l := range snap.Locks {
		fmt.Fprintf(&b, "  %s %s %s\n", warnStyle.Render("locked"), l.File, mutedStyle.Render("by "+l.Holder))
	}
	if snap.Call != nil && snap.Call.Active {
		fmt.Fprintf(&b, "  %s %d in call\n", passStyle.Render("call"), len(snap.Call.Participants))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// Feed renders activity events, oldest first, one per line.
func Feed(events []activity.Event, width int) string {
	if len(events) == 0 {
		return mutedStyle.Render("no activity")
	}
	var b strings.Builder
	for _, e := range events {
		line := fmt.Sprintf("%s %-20s %s%s",
			mutedStyle.Render(e.Timestamp.Format(timeLayout)),
			string(e.Kind),
			e.UserID,
			payloadSuffix(e.Payload))
		b.WriteString(Truncate(line, width) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Envelope renders one broadcast envelope as a single line.
func Envelope(env event.Envelope, width int) string {
	origin := env.Origin
	if origin == "" {
		origin = "-"
	}
	line := fmt.Sprintf("%s %s #%d %-20s %s",
		mutedStyle.Render(env.Timestamp.Format(timeLayout)),
		mutedStyle.Render(env.SessionID),
		env.Seq,
		string(env.Kind),
		origin)
	return Truncate(line, width)
}

// LogEntry renders one parsed log line. Attributes are printed in key order
// and the line is never truncated.
func LogEntry(e logging.Entry) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(e.Time.Format("15:04:05.000")))
	b.WriteString(" " + levelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level)))
	if e.Component != "" {
		b.WriteString(" " + mutedStyle.Render("["+e.Component+"]"))
	}
	b.WriteString(" " + e.Message)
	if e.SessionID != "" {
		b.WriteString(mutedStyle.Render(" session=" + e.SessionID))
	}
	if e.UserID != "" {
		b.WriteString(mutedStyle.Render(" user=" + e.UserID))
	}
	for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" %s=%v", k, e.Attrs[k])))
	}
	return b.String()
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case logging.LevelError:
		return failStyle
	case logging.LevelWarn:
		return warnStyle
	case logging.LevelDebug:
		return mutedStyle
	default:
		return passStyle
	}
}

// Result renders a scenario run step by step, followed by a summary.
func Result(res *scenario.Result, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(res.Name), mutedStyle.Render(res.SessionID))

	for _, s := range res.Steps {
		mark := passStyle.Render("✓")
		if !s.OK {
			mark = failStyle.Render("✗")
		}
		line := fmt.Sprintf("%s %2d %-12s %-8s %s", mark, s.Index, s.Action, s.User, outcome(s))
		b.WriteString(Truncate(line, width) + "\n")
	}

	failed := len(res.Failures())
	switch failed {
	case 0:
		fmt.Fprintf(&b, "%s %d steps\n", passStyle.Render("PASS"), len(res.Steps))
	default:
		fmt.Fprintf(&b, "%s %d of %d steps\n", failStyle.Render("FAIL"), failed, len(res.Steps))
	}
	return b.String()
}

func outcome(s scenario.StepResult) string {
	switch {
	case s.Err != nil && s.Expected != "":
		return mutedStyle.Render("expected " + s.Expected + ": " + s.Err.Error())
	case s.Err != nil:
		return failStyle.Render(s.Err.Error())
	case s.Expected != "":
		return failStyle.Render("succeeded, expected " + s.Expected)
	default:
		return s.Detail
	}
}

func statusDot(s presence.Status) string {
	switch s {
	case presence.Online:
		return passStyle.Render("●")
	case presence.Away:
		return warnStyle.Render("●")
	case presence.Busy:
		return failStyle.Render("●")
	default:
		return mutedStyle.Render("○")
	}
}

func displayName(u presence.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

func payloadSuffix(p map[string]any) string {
	for _, key := range []string{"file", "reason", "permission", "status"} {
		if v, ok := p[key]; ok {
			return mutedStyle.Render(fmt.Sprintf(" %s=%v", key, v))
		}
	}
	return ""
}
