// Package report renders a run summary as markdown for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/edgar-sessions/sessionize/internal/stats"
)

// Markdown builds the run report.
func Markdown(s stats.Summary) string {
	var b strings.Builder

	b.WriteString("# Sessionization report\n\n")
	fmt.Fprintf(&b, "Inactivity period: **%ds**\n\n", s.Threshold)

	b.WriteString("| Metric | Value |\n|---|---|\n")
	row := func(name string, value any) {
		fmt.Fprintf(&b, "| %s | %v |\n", name, value)
	}
	row("Rows read", s.Rows)
	row("Rows skipped", s.Skipped)
	row("Sessions", s.Sessions)
	row("Requests", s.Requests)
	row("Distinct clients", s.Clients)
	row("Returning clients", s.ReturningClients)
	row("Peak open sessions", s.PeakOpen)
	row("Mean duration", fmt.Sprintf("%.1fs", s.MeanDurationSec))
	if s.Longest.ClientID != "" {
		row("Longest session", fmt.Sprintf("`%s` (%ds)", s.Longest.ClientID, s.Longest.Value))
	}
	if s.Busiest.ClientID != "" {
		row("Busiest session", fmt.Sprintf("`%s` (%d requests)", s.Busiest.ClientID, s.Busiest.Value))
	}
	if s.Done {
		row("Elapsed", fmt.Sprintf("%.2fs", s.Elapsed))
	}
	if s.RSSBytes > 0 {
		row("Resident memory", formatBytes(s.RSSBytes))
	}

	if len(s.Durations) > 0 {
		b.WriteString("\n## Session durations\n\n| Bucket | Sessions |\n|---|---|\n")
		for _, bucket := range s.Durations {
			fmt.Fprintf(&b, "| %s | %d |\n", bucket.Label, bucket.Count)
		}
	}

	return b.String()
}

// Render returns the report styled for a terminal. style is a glamour style
// name ("dark", "light", "notty"); "auto" or "" detects the terminal.
func Render(s stats.Summary, style string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(Markdown(s))
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
