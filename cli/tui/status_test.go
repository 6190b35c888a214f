package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/probelab/reporter/metrics"
	"github.com/probelab/reporter/runtime"
)

func newTestModel(t *testing.T) (StatusModel, *metrics.Counters, *runtime.ControlState, chan struct{}) {
	t.Helper()
	counters := metrics.NewCounters()
	control := runtime.NewControlState()
	manual := runtime.NewManualSource()
	manual.Start(control)
	done := make(chan struct{})
	model := NewStatusModel(counters, manual, control.Paused, done, time.Now())
	return model, counters, control, done
}

func TestStatusModel_RendersCounters(t *testing.T) {
	model, counters, _, _ := newTestModel(t)

	counters.IncTimed()
	counters.IncTimed()
	counters.IncComponent()

	updated, _ := model.Update(tickMsg(time.Now()))
	view := updated.View()

	for _, label := range []string{"Timed", "State", "Process", "Component", "Elapsed:", "RUNNING"} {
		if !strings.Contains(view, label) {
			t.Errorf("view missing %q", label)
		}
	}
}

func TestStatusModel_QuitRequestsStop(t *testing.T) {
	model, _, control, _ := newTestModel(t)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if !control.Stopped() {
		t.Error("q did not request a stop")
	}
	if cmd == nil {
		t.Error("q did not quit the program")
	}
	if view := updated.View(); view != "" {
		t.Errorf("quitting view = %q, want empty", view)
	}
}

func TestStatusModel_PauseToggle(t *testing.T) {
	model, _, control, _ := newTestModel(t)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if !control.Paused() {
		t.Fatal("p did not pause")
	}

	refreshed, _ := updated.Update(tickMsg(time.Now()))
	if !strings.Contains(refreshed.View(), "PAUSED") {
		t.Error("view does not show PAUSED state")
	}

	if _, _ = refreshed.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}}); control.Paused() {
		t.Error("second p did not resume")
	}
}

func TestStatusModel_QuitsWhenAcquisitionFinishes(t *testing.T) {
	model, _, _, done := newTestModel(t)
	close(done)

	_, cmd := model.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("model did not quit after acquisition finished")
	}
}
