// Package detail renders the session info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/edgar-sessions/sessionize/internal/tui/client"
	"github.com/edgar-sessions/sessionize/internal/tui/theme"
)

const (
	panelWidth = 56
	labelWidth = 14
	timeLayout = "2006-01-02 15:04:05"
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the state for the detail overlay.
type Model struct {
	Session *client.Session
	// Threshold is the inactivity period the server runs with; zero hides
	// the expiry row.
	Threshold int
}

// New creates a detail model for the given session.
func New(s *client.Session, threshold int) Model {
	return Model{Session: s, Threshold: threshold}
}

// View renders the detail panel. Returns an empty string if no session is set.
func (m Model) View() string {
	if m.Session == nil {
		return ""
	}
	return stylePanel.Width(panelWidth).Render(m.renderInner(m.Session))
}

func (m Model) renderInner(s *client.Session) string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("Session #"+fmt.Sprint(s.Rank)) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "Client", s.ClientID)
	writeRow(&b, "First request", s.FirstSeen.UTC().Format(timeLayout))
	writeRow(&b, "Last request", s.LastSeen.UTC().Format(timeLayout))
	if m.Threshold > 0 {
		expired := s.LastSeen.Add(time.Duration(m.Threshold+1) * time.Second)
		writeRow(&b, "Expired at", expired.UTC().Format(timeLayout))
	}

	b.WriteString("\n")

	durColor := theme.DurationColor(s.Duration)
	writeRow(&b, "Duration", lipgloss.NewStyle().Foreground(durColor).Render(FormatDuration(s.Duration)))
	writeRow(&b, "Requests", fmt.Sprintf("%d", s.RequestCount))
	if s.Duration > 1 {
		rate := float64(s.RequestCount) / float64(s.Duration) * 60
		writeRow(&b, "Rate", fmt.Sprintf("%.1f req/min", rate))
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render("[esc] close"))

	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

// FormatDuration renders a session length in seconds as e.g. "1h 2m 5s".
func FormatDuration(sec int64) string {
	d := time.Duration(sec) * time.Second
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", sec)
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", sec/60, sec%60)
	default:
		return fmt.Sprintf("%dh %dm %ds", sec/3600, (sec%3600)/60, sec%60)
	}
}
