// Package runtime drives the acquisition pipeline: the read-decode-route
// loop, the control plane, and the termination accounting.
package runtime

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// ControlState carries the stop and pause flags shared between the
// acquisition worker and its control sources. Many writers (signal
// handlers, the status view, tests); read by the worker and, for the pause
// flag, the status view. Atomic flag semantics suffice.
type ControlState struct {
	stop  atomic.Bool
	pause atomic.Bool
}

// NewControlState creates a control state with both flags clear.
func NewControlState() *ControlState {
	return &ControlState{}
}

// RequestStop sets the stop flag. One-way; there is no restart.
func (s *ControlState) RequestStop() {
	s.stop.Store(true)
}

// TogglePause flips the pause flag and returns the new value.
func (s *ControlState) TogglePause() bool {
	for {
		old := s.pause.Load()
		if s.pause.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// SetPause sets the pause flag to v.
func (s *ControlState) SetPause(v bool) {
	s.pause.Store(v)
}

// Stopped reports whether a stop was requested.
func (s *ControlState) Stopped() bool {
	return s.stop.Load()
}

// Paused reports whether the pipeline should hold off reading.
func (s *ControlState) Paused() bool {
	return s.pause.Load()
}

// ControlSource feeds stop and pause requests into a ControlState from
// some external origin: OS signals, a status view, a test harness.
type ControlSource interface {
	// Start begins forwarding requests into state.
	Start(state *ControlState)
	// Stop detaches the source. Idempotent.
	Stop()
}

// SignalSource maps OS signals onto the control state: SIGINT requests a
// stop, SIGTSTP toggles pause.
type SignalSource struct {
	sigCh chan os.Signal
	done  chan struct{}
}

// NewSignalSource creates an unstarted signal source.
func NewSignalSource() *SignalSource {
	return &SignalSource{}
}

// Start implements ControlSource.
func (s *SignalSource) Start(state *ControlState) {
	s.sigCh = make(chan os.Signal, 1)
	s.done = make(chan struct{})
	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTSTP)

	go func() {
		for {
			select {
			case sig := <-s.sigCh:
				switch sig {
				case syscall.SIGINT:
					state.RequestStop()
				case syscall.SIGTSTP:
					state.TogglePause()
				}
			case <-s.done:
				return
			}
		}
	}()
}

// Stop implements ControlSource.
func (s *SignalSource) Stop() {
	if s.sigCh == nil {
		return
	}
	signal.Stop(s.sigCh)
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// ManualSource is a programmatic control source, used by tests and the
// status view.
type ManualSource struct {
	state *ControlState
}

// NewManualSource creates an unstarted manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Start implements ControlSource.
func (m *ManualSource) Start(state *ControlState) {
	m.state = state
}

// Stop implements ControlSource.
func (m *ManualSource) Stop() {}

// RequestStop forwards a stop request. No-op before Start.
func (m *ManualSource) RequestStop() {
	if m.state != nil {
		m.state.RequestStop()
	}
}

// TogglePause forwards a pause toggle. No-op before Start.
func (m *ManualSource) TogglePause() {
	if m.state != nil {
		m.state.TogglePause()
	}
}
