// Package status renders the top bar: connection state, run counters and a
// spring-smoothed progress gauge.
package status

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/edgar-sessions/sessionize/internal/tui/client"
	"github.com/edgar-sessions/sessionize/internal/tui/theme"
)

// FPS is the rate at which Tick is expected to be called.
const FPS = 30

const gaugeWidth = 24

// Model holds the status bar state.
type Model struct {
	Connected bool
	Done      bool
	Progress  client.ProgressPayload
	Sessions  int
	Dropped   int
	Width     int

	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

// New creates a status bar model.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 1.0),
	}
}

// SetProgress records new counters and retargets the gauge.
func (m *Model) SetProgress(p client.ProgressPayload) {
	m.Progress = p
	if f := p.Fraction(); f >= 0 {
		m.target = f
	}
}

// SetDone pins the gauge to full.
func (m *Model) SetDone() {
	m.Done = true
	m.target = 1
}

// Tick advances the gauge animation by one frame.
func (m *Model) Tick() {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
}

// Animating reports whether the gauge has not yet settled on its target.
func (m Model) Animating() bool {
	return math.Abs(m.target-m.pos) > 0.001 || math.Abs(m.vel) > 0.001
}

// Position returns the displayed gauge fraction, clamped to [0, 1].
func (m Model) Position() float64 {
	return math.Max(0, math.Min(1, m.pos))
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	counts := fmt.Sprintf("%d sessions  %d open  %d rows  %d skipped",
		m.Sessions, m.Progress.Open, m.Progress.Rows, m.Progress.Skipped)
	if m.Dropped > 0 {
		counts += fmt.Sprintf("  (%d evicted)", m.Dropped)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts + sep + m.gauge()

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}

func (m Model) gauge() string {
	if m.Progress.Fraction() < 0 && !m.Done {
		return theme.StyleDimmed.Render("streaming")
	}

	pos := m.Position()
	filled := int(math.Round(pos * gaugeWidth))
	fill := theme.ColorGaugeFill
	if m.Done {
		fill = theme.ColorGaugeDone
	}

	bar := lipgloss.NewStyle().Foreground(fill).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.ColorGaugeEmpty).Render(strings.Repeat("░", gaugeWidth-filled))
	label := fmt.Sprintf(" %3.0f%%", pos*100)
	if m.Done {
		label = " done"
	}
	return bar + label
}
