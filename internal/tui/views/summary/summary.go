// Package summary renders the run statistics overlay.
package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/edgar-sessions/sessionize/internal/tui/client"
	"github.com/edgar-sessions/sessionize/internal/tui/theme"
)

const (
	barWidth   = 30
	labelWidth = 18
)

var styleLabel = lipgloss.NewStyle().
	Foreground(theme.ColorDimmed).
	Width(labelWidth)

// Model holds the last fetched stats.
type Model struct {
	Stats   *client.Stats
	Err     error
	Loading bool
}

// View renders the overlay panel.
func (m Model) View(width int) string {
	innerW := width - 4
	if innerW < 40 {
		innerW = 40
	}

	title := theme.StyleHeader.Render(" RUN STATS ")
	help := theme.StyleDimmed.Render("esc:close  s:refresh")

	var body string
	switch {
	case m.Loading:
		body = theme.StyleDimmed.Render("  Loading...")
	case m.Err != nil:
		body = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("  " + m.Err.Error())
	case m.Stats == nil:
		body = theme.StyleDimmed.Render("  No stats yet.")
	default:
		body = renderStats(m.Stats)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func renderStats(s *client.Stats) string {
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(styleLabel.Render(label) + value + "\n")
	}

	state := "running"
	if s.Done {
		state = fmt.Sprintf("finished in %.2fs", s.Elapsed)
	}
	row("Status", state)
	row("Inactivity period", fmt.Sprintf("%ds", s.Threshold))
	row("Rows", fmt.Sprintf("%d (%d skipped)", s.Rows, s.Skipped))
	row("Sessions", fmt.Sprintf("%d from %d clients", s.Sessions, s.Clients))
	row("Returning clients", fmt.Sprintf("%d", s.ReturningClients))
	row("Requests", fmt.Sprintf("%d", s.Requests))
	row("Peak open", fmt.Sprintf("%d", s.PeakOpen))
	row("Mean duration", fmt.Sprintf("%.1fs", s.MeanDurationSec))
	if s.Longest.ClientID != "" {
		row("Longest", fmt.Sprintf("%s (%ds)", s.Longest.ClientID, s.Longest.Value))
	}
	if s.Busiest.ClientID != "" {
		row("Busiest", fmt.Sprintf("%s (%d requests)", s.Busiest.ClientID, s.Busiest.Value))
	}
	if s.RSSBytes > 0 {
		row("Memory", fmt.Sprintf("%.1f MiB", float64(s.RSSBytes)/(1<<20)))
	}

	if len(s.Durations) > 0 {
		b.WriteString("\n" + theme.StyleHeader.Render("Durations") + "\n")
		b.WriteString(Histogram(s.Durations, barWidth))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Histogram renders one horizontal bar per bucket, scaled to the largest.
func Histogram(buckets []client.Bucket, width int) string {
	peak := 0
	for _, bk := range buckets {
		if bk.Count > peak {
			peak = bk.Count
		}
	}

	var b strings.Builder
	for _, bk := range buckets {
		n := 0
		if peak > 0 {
			n = bk.Count * width / peak
		}
		if bk.Count > 0 && n == 0 {
			n = 1
		}
		bar := lipgloss.NewStyle().Foreground(theme.ColorGaugeFill).Render(strings.Repeat("█", n))
		fmt.Fprintf(&b, "  %-7s %s %d\n", bk.Label, bar, bk.Count)
	}
	return b.String()
}
