package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/edgar-sessions/sessionize/internal/tui/client"
	"github.com/edgar-sessions/sessionize/internal/tui/theme"
	"github.com/edgar-sessions/sessionize/internal/tui/views/debug"
	"github.com/edgar-sessions/sessionize/internal/tui/views/detail"
	"github.com/edgar-sessions/sessionize/internal/tui/views/status"
	"github.com/edgar-sessions/sessionize/internal/tui/views/summary"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayStats
	OverlayDebug
)

const tableTimeLayout = "2006-01-02 15:04:05"

// chromeHeight is the number of rows used by the status bar and help line.
const chromeHeight = 6

type statsMsg struct {
	stats *client.Stats
	err   error
}

type configMsg struct {
	cfg *client.ServerConfig
	err error
}

type frameMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Closed sessions in emission order.
	sessions  []*client.Session
	table     table.Model
	follow    bool // keep the cursor on the newest session
	threshold int

	overlay   Overlay
	statusBar status.Model
	debugLog  debug.Model
	stats     summary.Model

	connected bool
	animating bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		table:     newTable(),
		follow:    true,
		statusBar: status.New(),
		debugLog:  debug.New(),
	}
}

func newTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 7},
			{Title: "Client", Width: 22},
			{Title: "First", Width: 19},
			{Title: "Last", Width: 19},
			{Title: "Duration", Width: 10},
			{Title: "Req", Width: 6},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = theme.StyleSelected
	t.SetStyles(s)
	return t
}

// Init starts the WebSocket connection and fetches the server config.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.fetchConfig())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(3, msg.Height-chromeHeight))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debugLog.Add("ws", "connected")
		return m, m.readNext()

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debugLog.Addf("ws", "disconnected: %v", msg.Err)
		return m, m.listen()

	case client.WSSnapshotMsg:
		p := msg.Payload
		m.sessions = p.Sessions
		m.statusBar.Dropped = p.Dropped
		if p.Progress != nil {
			m.statusBar.SetProgress(*p.Progress)
		}
		if p.Done {
			m.statusBar.SetDone()
		}
		m.rebuildRows()
		m.debugLog.Addf("ws", "snapshot: %d sessions", len(p.Sessions))
		anim := m.animate()
		return m, tea.Batch(m.readNext(), anim)

	case client.WSDeltaMsg:
		m.sessions = append(m.sessions, msg.Payload.Closed...)
		m.rebuildRows()
		return m, m.readNext()

	case client.WSProgressMsg:
		m.statusBar.SetProgress(msg.Payload)
		anim := m.animate()
		return m, tea.Batch(m.readNext(), anim)

	case client.WSCompleteMsg:
		sum := msg.Payload.Summary
		m.statusBar.SetDone()
		m.stats = summary.Model{Stats: &sum}
		m.debugLog.Addf("run", "complete: %d sessions from %d rows", sum.Sessions, sum.Rows)
		anim := m.animate()
		return m, tea.Batch(m.readNext(), anim)

	case client.WSErrorMsg:
		m.debugLog.Add("err", msg.Payload.Message)
		return m, m.readNext()

	case statsMsg:
		m.stats = summary.Model{Stats: msg.stats, Err: msg.err}
		if msg.err != nil {
			m.debugLog.Addf("http", "stats: %v", msg.err)
		}
		return m, nil

	case configMsg:
		if msg.err != nil {
			m.debugLog.Addf("http", "config: %v", msg.err)
			return m, nil
		}
		m.threshold = msg.cfg.Threshold
		return m, nil

	case frameMsg:
		m.statusBar.Tick()
		if !m.statusBar.Animating() {
			m.animating = false
			return m, nil
		}
		return m, frame()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Enter):
		if m.selected() != nil {
			m.overlay = OverlayDetail
		}
		return m, nil

	case key.Matches(msg, m.keys.Stats):
		m.overlay = OverlayStats
		return m.refreshStats()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Resync):
		if m.ws != nil {
			if err := m.ws.Resync(); err != nil {
				m.debugLog.Addf("err", "resync: %v", err)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.table.GotoBottom()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Up) {
		m.follow = false
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Escape) {
		m.overlay = OverlayNone
		return m, nil
	}

	switch m.overlay {
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		}
	case OverlayStats:
		if key.Matches(msg, m.keys.Stats) {
			return m.refreshStats()
		}
	}
	return m, nil
}

func (m Model) refreshStats() (tea.Model, tea.Cmd) {
	if m.http == nil {
		return m, nil
	}
	m.stats.Loading = true
	m.stats.Err = nil
	return m, m.fetchStats()
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if !m.connected {
		return m.renderDisconnected()
	}

	var body string
	switch m.overlay {
	case OverlayDetail:
		body = detail.New(m.selected(), m.threshold).View()
	case OverlayStats:
		body = m.stats.View(m.width)
	case OverlayDebug:
		body = m.debugLog.View(m.width, m.height-chromeHeight)
	default:
		body = m.renderTable()
	}

	follow := ""
	if m.follow {
		follow = " [following]"
	}
	sections := []string{
		m.statusBar.View(),
		body,
		theme.StyleDimmed.Render("  j/k:navigate  enter:detail  s:stats  d:debug  f:follow  r:resync  q:quit" + follow),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTable() string {
	if len(m.sessions) == 0 {
		return theme.StyleDimmed.Render("  No sessions closed yet")
	}
	return m.table.View()
}

func (m Model) renderDisconnected() string {
	msg := "Reconnecting..."
	if m.ws != nil {
		if err := m.ws.LastError(); err != nil {
			msg = fmt.Sprintf("Reconnecting... (%v)", err)
		}
	}
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorDanger).
		Padding(1, 4).
		Render(lipgloss.JoinVertical(lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
			"",
			theme.StyleDimmed.Render(msg),
		))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) selected() *client.Session {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.sessions) {
		return nil
	}
	return m.sessions[i]
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.sessions))
	for i, s := range m.sessions {
		rows[i] = table.Row{
			fmt.Sprintf("%d", s.Rank),
			s.ClientID,
			s.FirstSeen.UTC().Format(tableTimeLayout),
			s.LastSeen.UTC().Format(tableTimeLayout),
			detail.FormatDuration(s.Duration),
			fmt.Sprintf("%d", s.RequestCount),
		}
	}
	m.table.SetRows(rows)
	if m.follow {
		m.table.GotoBottom()
	}
}

func (m Model) listen() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.Listen(m.ctx)
}

func (m Model) readNext() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.ReadLoop(m.ctx)
}

func (m Model) fetchStats() tea.Cmd {
	h := m.http
	return func() tea.Msg {
		s, err := h.GetStats()
		return statsMsg{stats: s, err: err}
	}
}

func (m Model) fetchConfig() tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		cfg, err := h.GetConfig()
		return configMsg{cfg: cfg, err: err}
	}
}

// animate starts the gauge frame loop unless it is already running.
func (m *Model) animate() tea.Cmd {
	if m.animating || !m.statusBar.Animating() {
		return nil
	}
	m.animating = true
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/status.FPS, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}
