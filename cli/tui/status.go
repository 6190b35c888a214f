package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/probelab/reporter/metrics"
	"github.com/probelab/reporter/runtime"
)

// pollInterval is how often the view refreshes the counter snapshot.
const pollInterval = 500 * time.Millisecond

// keyMap defines the status view key bindings.
type keyMap struct {
	Quit  key.Binding
	Pause key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "stop acquisition"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause/resume"),
	),
}

// tickMsg carries the poll timer.
type tickMsg time.Time

// doneMsg signals that the acquisition finished on its own.
type doneMsg struct{}

// StatusModel is a Bubble Tea model showing live acquisition counters.
type StatusModel struct {
	counters *metrics.Counters
	control  *runtime.ManualSource
	paused   func() bool
	done     <-chan struct{}
	start    time.Time
	snap     metrics.Snapshot
	elapsed  time.Duration
	width    int
	height   int
	quitting bool
}

// NewStatusModel creates a status model polling counters. The done channel
// closes when the acquisition finishes, quitting the view.
func NewStatusModel(counters *metrics.Counters, control *runtime.ManualSource, paused func() bool, done <-chan struct{}, start time.Time) StatusModel {
	return StatusModel{
		counters: counters,
		control:  control,
		paused:   paused,
		done:     done,
		start:    start,
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.snap = m.counters.Snapshot()
		m.elapsed = time.Since(m.start)
		select {
		case <-m.done:
			m.quitting = true
			return m, tea.Quit
		default:
		}
		return m, tick()

	case doneMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.control.RequestStop()
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.control.TogglePause()
			return m, nil
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Acquisition Status"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Timed", m.snap.Timed),
		m.renderStatBox("State", m.snap.State),
		m.renderStatBox("Process", m.snap.Process),
		m.renderStatBox("Component", m.snap.Component),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Elapsed:"),
		ValueStyle.Render(m.elapsed.Round(time.Second).String())))

	state := RunningStyle.Render("RUNNING")
	if m.paused() {
		state = PausedStyle.Render("PAUSED")
	}
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("State:"), state))

	help := HelpStyle.Render("Press q to stop, p to pause/resume")
	return b.String() + help
}

func (m StatusModel) renderStatBox(label string, value int64) string {
	valueStr := StatValueStyle.Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return StatBoxStyle.Render(content)
}

// RunStatusTUI runs the status view until the acquisition finishes or the
// user requests a stop.
func RunStatusTUI(counters *metrics.Counters, control *runtime.ManualSource, paused func() bool, done <-chan struct{}, start time.Time) error {
	model := NewStatusModel(counters, control, paused, done, start)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
