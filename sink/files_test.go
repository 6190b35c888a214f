package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/probelab/reporter/channel"
	"github.com/probelab/reporter/log"
	"github.com/probelab/reporter/metrics"
)

func ev(ts uint64, kind channel.EventKind, payload string) channel.Event {
	return channel.Event{Timestamp: ts, Kind: kind, Payload: payload}
}

func newTestFileRouter(t *testing.T) (*FileRouter, string, *metrics.Counters) {
	t.Helper()
	dir := t.TempDir()
	counters := metrics.NewCounters()
	router, err := NewFileRouter(dir, counters, log.Nop())
	if err != nil {
		t.Fatalf("NewFileRouter failed: %v", err)
	}
	return router, dir, counters
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name+"_log.csv"))
	if err != nil {
		t.Fatalf("cannot read %s log: %v", name, err)
	}
	return string(data)
}

func TestFileRouter_MainLines(t *testing.T) {
	router, dir, counters := newTestFileRouter(t)

	events := []channel.Event{
		ev(10, channel.KindTimed, "a"),
		ev(20, channel.KindTimed, "b"),
		ev(30, channel.KindTimed, "c"),
	}
	for _, e := range events {
		if err := router.Route(t.Context(), e); err != nil {
			t.Fatalf("Route failed: %v", err)
		}
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	want := "10,timed_event,a\n20,timed_event,b\n30,timed_event,c\n"
	if got := readLog(t, dir, "main"); got != want {
		t.Errorf("main log = %q, want %q", got, want)
	}

	snap := counters.Snapshot()
	if snap.Timed != 3 || snap.State != 0 || snap.Process != 0 || snap.Component != 0 {
		t.Errorf("counters = %+v, want (3,0,0,0)", snap)
	}
}

func TestFileRouter_AllMainKinds(t *testing.T) {
	router, dir, counters := newTestFileRouter(t)

	events := []channel.Event{
		ev(1, channel.KindTimed, "t"),
		ev(2, channel.KindState, "s"),
		ev(3, channel.KindProcess, "p"),
		ev(4, channel.KindComponent, "c"),
	}
	for _, e := range events {
		if err := router.Route(t.Context(), e); err != nil {
			t.Fatalf("Route failed: %v", err)
		}
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	want := "1,timed_event,t\n2,state_event,s\n3,process_event,p\n4,component_event,c\n"
	if got := readLog(t, dir, "main"); got != want {
		t.Errorf("main log = %q, want %q", got, want)
	}

	snap := counters.Snapshot()
	if snap.Timed != 1 || snap.State != 1 || snap.Process != 1 || snap.Component != 1 {
		t.Errorf("counters = %+v, want (1,1,1,1)", snap)
	}
}

func TestFileRouter_SelfLoggingComponent(t *testing.T) {
	router, dir, counters := newTestFileRouter(t)

	if err := router.Route(t.Context(), ev(5, channel.KindLogInit, "mod")); err != nil {
		t.Fatalf("Route(log init) failed: %v", err)
	}
	if err := router.Route(t.Context(), ev(6, channel.KindSelfLogged, "mod,100,hello")); err != nil {
		t.Fatalf("Route(self logged) failed: %v", err)
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if got := readLog(t, dir, "mod"); got != "6,100,hello\n" {
		t.Errorf("mod log = %q, want %q", got, "6,100,hello\n")
	}
	// No line lands in main for either event.
	if got := readLog(t, dir, "main"); got != "" {
		t.Errorf("main log = %q, want empty", got)
	}
	if snap := counters.Snapshot(); snap.Component != 1 {
		t.Errorf("Component = %d, want 1", snap.Component)
	}
}

func TestFileRouter_LogInitIdempotent(t *testing.T) {
	router, dir, _ := newTestFileRouter(t)

	if err := router.Route(t.Context(), ev(1, channel.KindLogInit, "mod")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := router.Route(t.Context(), ev(2, channel.KindSelfLogged, "mod,first")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	// A second log init for the same component must not truncate.
	if err := router.Route(t.Context(), ev(3, channel.KindLogInit, "mod")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := router.Route(t.Context(), ev(4, channel.KindSelfLogged, "mod,second")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	want := "2,first\n4,second\n"
	if got := readLog(t, dir, "mod"); got != want {
		t.Errorf("mod log = %q, want %q", got, want)
	}
}

func TestFileRouter_UnknownKind(t *testing.T) {
	router, dir, counters := newTestFileRouter(t)

	if err := router.Route(t.Context(), channel.Event{Timestamp: 9, Code: 99, Kind: channel.KindInvalid, Payload: "?"}); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if got := readLog(t, dir, "main"); got != "9,invalid,?\n" {
		t.Errorf("main log = %q, want %q", got, "9,invalid,?\n")
	}
	if snap := counters.Snapshot(); snap.Total() != 0 {
		t.Errorf("counters advanced on invalid event: %+v", snap)
	}
}

func TestFileRouter_MissingComponentSink(t *testing.T) {
	router, dir, counters := newTestFileRouter(t)

	// Self-logged event before the component's log init: routed to main.
	if err := router.Route(t.Context(), ev(7, channel.KindSelfLogged, "ghost,100,hi")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if got := readLog(t, dir, "main"); got != "7,ghost,100,hi\n" {
		t.Errorf("main log = %q, want %q", got, "7,ghost,100,hi\n")
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost_log.csv")); !os.IsNotExist(err) {
		t.Error("ghost log file should not exist")
	}
	if snap := counters.Snapshot(); snap.Component != 1 {
		t.Errorf("Component = %d, want 1", snap.Component)
	}
}

func TestFileRouter_BadSinkName(t *testing.T) {
	router, _, _ := newTestFileRouter(t)

	for _, name := range []string{"", "a/b", `a\b`, ".."} {
		err := router.Route(t.Context(), ev(1, channel.KindLogInit, name))
		if !errors.Is(err, ErrBadSinkName) {
			t.Errorf("name %q: err = %v, want ErrBadSinkName", name, err)
		}
	}
}

func TestFileRouter_RouteAfterFinish(t *testing.T) {
	router, _, _ := newTestFileRouter(t)

	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	err := router.Route(t.Context(), ev(1, channel.KindTimed, "late"))
	if !errors.Is(err, ErrSinkClosed) {
		t.Errorf("err = %v, want ErrSinkClosed", err)
	}
}

func TestFileRouter_FinishIdempotent(t *testing.T) {
	router, _, _ := newTestFileRouter(t)

	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("first Finish failed: %v", err)
	}
	if err := router.Finish(t.Context()); err != nil {
		t.Fatalf("second Finish failed: %v", err)
	}
}

func TestFileRouter_NeverEndsReport(t *testing.T) {
	router, _, _ := newTestFileRouter(t)

	if err := router.Route(t.Context(), ev(1, channel.KindLogInit, "mod")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if router.EndOfReportSeen() {
		t.Error("file router reported end of report on log init")
	}
}
