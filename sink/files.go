package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/probelab/reporter/channel"
	"github.com/probelab/reporter/log"
	"github.com/probelab/reporter/metrics"
)

// MainSink is the sink name every file router starts with.
const MainSink = "main"

// FileRouter writes events as CSV lines to per-component log files under a
// single directory. The main log is opened up front; component logs are
// opened lazily on kind-4 records.
type FileRouter struct {
	dir      string
	files    map[string]*os.File
	counters *metrics.Counters
	logger   *log.Logger
	finished bool
}

// NewFileRouter creates a file router writing under dir. The main log file
// is created (truncated) immediately.
func NewFileRouter(dir string, counters *metrics.Counters, logger *log.Logger) (*FileRouter, error) {
	r := &FileRouter{
		dir:      dir,
		files:    make(map[string]*os.File),
		counters: counters,
		logger:   logger,
	}
	if err := r.open(MainSink); err != nil {
		return nil, err
	}
	return r, nil
}

// logPath returns the log file path for a sink name.
func (r *FileRouter) logPath(name string) string {
	return filepath.Join(r.dir, name+"_log.csv")
}

// open creates (truncating) and registers the log file for name.
// A second open for the same name is a no-op.
func (r *FileRouter) open(name string) error {
	if _, ok := r.files[name]; ok {
		return nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return &SinkError{Op: "open", Name: name, Err: ErrBadSinkName}
	}
	f, err := os.Create(r.logPath(name))
	if err != nil {
		return &SinkError{Op: "open", Name: name, Err: err}
	}
	r.files[name] = f
	r.logger.Debug("sink opened", map[string]any{
		"sink": name,
		"path": r.logPath(name),
	})
	return nil
}

// write emits one line to the named sink.
func (r *FileRouter) write(name, line string) error {
	f, ok := r.files[name]
	if !ok {
		return &SinkError{Op: "write", Name: name, Err: ErrSinkMissing}
	}
	if _, err := f.WriteString(line); err != nil {
		return &SinkError{Op: "write", Name: name, Err: err}
	}
	return nil
}

// Route implements Router.
func (r *FileRouter) Route(_ context.Context, ev channel.Event) error {
	if r.finished {
		return &SinkError{Op: "write", Err: ErrSinkClosed}
	}

	switch ev.Kind {
	case channel.KindTimed:
		if err := r.write(MainSink, mainLine(ev)); err != nil {
			return err
		}
		r.counters.IncTimed()

	case channel.KindState:
		if err := r.write(MainSink, mainLine(ev)); err != nil {
			return err
		}
		r.counters.IncState()

	case channel.KindProcess:
		if err := r.write(MainSink, mainLine(ev)); err != nil {
			return err
		}
		r.counters.IncProcess()

	case channel.KindComponent:
		if err := r.write(MainSink, mainLine(ev)); err != nil {
			return err
		}
		r.counters.IncComponent()

	case channel.KindLogInit:
		return r.open(ev.Payload)

	case channel.KindSelfLogged:
		return r.routeSelfLogged(ev)

	default:
		// Unknown event type codes land in the main log tagged invalid.
		// No counter advances.
		return r.write(MainSink, mainLine(ev))
	}
	return nil
}

// routeSelfLogged handles "<component>,<rest>" payloads. A component whose
// sink was never opened gets its line routed to the main log instead of
// dropping it or aborting the acquisition; the mismatch is logged.
func (r *FileRouter) routeSelfLogged(ev channel.Event) error {
	name, rest, _ := strings.Cut(ev.Payload, ",")

	if _, ok := r.files[name]; !ok {
		r.logger.Warn("self-logged event for unknown component, routing to main", map[string]any{
			"component": name,
			"error":     ErrSinkMissing.Error(),
		})
		if err := r.write(MainSink, fmt.Sprintf("%d,%s\n", ev.Timestamp, ev.Payload)); err != nil {
			return err
		}
		r.counters.IncComponent()
		return nil
	}

	if err := r.write(name, fmt.Sprintf("%d,%s\n", ev.Timestamp, rest)); err != nil {
		return err
	}
	r.counters.IncComponent()
	return nil
}

// EndOfReportSeen implements Router. Kind-4 records open sinks on the file
// path; they never signal completion.
func (r *FileRouter) EndOfReportSeen() bool {
	return false
}

// Finish implements Router. Close failures are logged, not propagated.
func (r *FileRouter) Finish(_ context.Context) error {
	if r.finished {
		return nil
	}
	r.finished = true
	for name, f := range r.files {
		if err := f.Close(); err != nil {
			r.logger.Warn("sink close failed", map[string]any{
				"sink":  name,
				"error": err.Error(),
			})
		}
	}
	return nil
}

// mainLine formats the main-log CSV line for an event.
func mainLine(ev channel.Event) string {
	return fmt.Sprintf("%d,%s,%s\n", ev.Timestamp, ev.Kind.Tag(), ev.Payload)
}
