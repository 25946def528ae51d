// Package theme provides the Lip Gloss color palette and reusable styles
// for the sessionize TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Duration colors, shortest to longest.
var (
	ColorSingleHit = lipgloss.Color("#6b7280")
	ColorShort     = lipgloss.Color("#22c55e")
	ColorMinute    = lipgloss.Color("#06b6d4")
	ColorLong      = lipgloss.Color("#3b82f6")
	ColorMarathon  = lipgloss.Color("#a855f7")
)

// Gauge colors.
var (
	ColorGaugeFill  = lipgloss.Color("#2563eb")
	ColorGaugeEmpty = lipgloss.Color("#374151")
	ColorGaugeDone  = lipgloss.Color("#16a34a")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#7c3aed")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// DurationColor returns the color for a session length in seconds.
func DurationColor(sec int64) lipgloss.Color {
	switch {
	case sec <= 1:
		return ColorSingleHit
	case sec <= 60:
		return ColorShort
	case sec <= 600:
		return ColorMinute
	case sec <= 3600:
		return ColorLong
	default:
		return ColorMarathon
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		Background(ColorAccent)
)
