package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dwadden/commboard/internal/domain"
	"github.com/dwadden/commboard/internal/menu"
)

const speedStep = 100 * time.Millisecond

// Runner controls the scanner lifecycle.
type Runner interface {
	Start()
	ScanNow()
	Stop()
}

// Switch receives keyboard substitutes for gazes.
type Switch interface {
	HandleKey(key string) bool
}

type Settings interface {
	ScanSpeed() time.Duration
	SetScanSpeed(d time.Duration) time.Duration
	Sound() bool
	SetSound(on bool)
}

// Deps wires the model to the backend. Load and Capture may be nil.
type Deps struct {
	Runner   Runner
	Switch   Switch
	Settings Settings
	Menus    []menu.View
	// Load re-reads menu labels.
	Load func() ([]menu.View, error)
	// Capture stores a camera template by name.
	Capture func(template string) error
}

type menusMsg struct {
	views []menu.View
	err   error
}

type highlight struct {
	menu  string
	index int
}

// Model is the bubbletea model for the board.
type Model struct {
	deps Deps
	keys keyMap
	help help.Model

	menus     []menu.View
	visible   map[string]bool
	highlight *highlight

	state     domain.ScannerState
	reason    domain.ScannerStateReason
	attention domain.AttendingState
	buffer    string
	status    string
	lastErr   string
	width     int
}

func New(deps Deps) Model {
	m := Model{
		deps:      deps,
		keys:      defaultKeyMap(),
		help:      help.New(),
		visible:   map[string]bool{},
		state:     domain.ScannerStateIdle,
		attention: domain.AttendingStateResting,
	}
	m.setMenus(deps.Menus)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	case tea.KeyMsg:
		return m.handleKey(msg)
	case stateMsg:
		m.state = msg.state
		m.reason = msg.reason
		if msg.state != domain.ScannerStateScanning {
			m.highlight = nil
		}
	case highlightMsg:
		m.highlight = &highlight{menu: msg.menu, index: msg.index}
		m.setLabel(msg.menu, msg.index, msg.label)
	case unhighlightMsg:
		if m.highlight != nil && m.highlight.menu == msg.menu && m.highlight.index == msg.index {
			m.highlight = nil
		}
	case attentionMsg:
		m.attention = msg.state
	case bufferMsg:
		m.buffer = msg.text
	case errorMsg:
		m.lastErr = fmt.Sprintf("%s: %s", msg.code, msg.detail)
	case visibilityMsg:
		m.visible[msg.menu] = msg.visible
		if msg.visible {
			return m, m.load()
		}
	case menusMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			break
		}
		m.setMenus(msg.views)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Gaze), key.Matches(msg, m.keys.Extended), key.Matches(msg, m.keys.Switch):
		m.deps.Switch.HandleKey(msg.String())
	case key.Matches(msg, m.keys.Start):
		m.deps.Runner.Start()
	case key.Matches(msg, m.keys.ScanNow):
		m.deps.Runner.ScanNow()
	case key.Matches(msg, m.keys.Stop):
		m.deps.Runner.Stop()
	case key.Matches(msg, m.keys.Faster):
		m.adjustSpeed(-speedStep)
	case key.Matches(msg, m.keys.Slower):
		m.adjustSpeed(speedStep)
	case key.Matches(msg, m.keys.Sound):
		m.deps.Settings.SetSound(!m.deps.Settings.Sound())
	case key.Matches(msg, m.keys.Rest):
		m.capture("rest")
	case key.Matches(msg, m.keys.Target):
		m.capture("gaze")
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) adjustSpeed(delta time.Duration) {
	stored := m.deps.Settings.SetScanSpeed(m.deps.Settings.ScanSpeed() + delta)
	m.status = fmt.Sprintf("scan speed %dms", stored.Milliseconds())
}

func (m *Model) capture(template string) {
	if m.deps.Capture == nil {
		m.lastErr = "camera sensor is not configured"
		return
	}
	if err := m.deps.Capture(template); err != nil {
		m.lastErr = err.Error()
		return
	}
	m.status = template + " template captured"
}

func (m Model) load() tea.Cmd {
	if m.deps.Load == nil {
		return nil
	}
	load := m.deps.Load
	return func() tea.Msg {
		views, err := load()
		return menusMsg{views: views, err: err}
	}
}

func (m *Model) setMenus(views []menu.View) {
	m.menus = views
	for _, view := range views {
		if _, ok := m.visible[view.Name]; !ok {
			m.visible[view.Name] = !view.Collapsible
		}
	}
}

func (m *Model) setLabel(menuName string, index int, label string) {
	for i := range m.menus {
		if m.menus[i].Name != menuName {
			continue
		}
		if index >= 0 && index < len(m.menus[i].Items) {
			m.menus[i].Items[index] = label
		}
		return
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	bufferStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	itemStyle      = lipgloss.NewStyle().Padding(0, 1)
	highlightStyle = itemStyle.Reverse(true).Bold(true)
)

func (m Model) View() string {
	var b strings.Builder

	sound := "off"
	if m.deps.Settings != nil && m.deps.Settings.Sound() {
		sound = "on"
	}
	speed := time.Duration(0)
	if m.deps.Settings != nil {
		speed = m.deps.Settings.ScanSpeed()
	}
	b.WriteString(titleStyle.Render("commboard"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s (%s)  %s  speed %dms  sound %s",
		m.state, m.reason, m.attention, speed.Milliseconds(), sound)))
	b.WriteString("\n")

	width := m.width - 2
	if width < 20 {
		width = 60
	}
	b.WriteString(bufferStyle.Width(width).Render(m.buffer + "_"))
	b.WriteString("\n")

	for _, view := range m.menus {
		if !m.visible[view.Name] {
			continue
		}
		b.WriteString(dimStyle.Render(view.Name))
		b.WriteString("\n")
		cells := make([]string, 0, len(view.Items))
		for i, label := range view.Items {
			if label == "" {
				label = "·"
			}
			style := itemStyle
			if m.highlight != nil && m.highlight.menu == view.Name && m.highlight.index == i {
				style = highlightStyle
			}
			cells = append(cells, style.Render(label))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(dimStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
