package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/probelab/reporter/broker"
	"github.com/probelab/reporter/channel"
	"github.com/probelab/reporter/log"
	"github.com/probelab/reporter/sink"
)

// DefaultPacing is the sleep between routed events, keeping the worker
// from monopolizing a core on fast SUTs.
const DefaultPacing = 10 * time.Microsecond

// pauseSpin is the poll interval while the pipeline is paused. Packets are
// not read during a pause; the pipe buffer back-pressures the SUT.
const pauseSpin = time.Second

// finishTimeout bounds the terminal sink work (poison pill, closes) after
// the loop exits.
const finishTimeout = 10 * time.Second

// watchdogPoll is how often the unblocker checks for stop and deadline
// while the worker may be parked in a pipe read.
const watchdogPoll = 100 * time.Millisecond

// StopReason records why the acquisition loop exited.
type StopReason int

const (
	// ReasonUnknown covers SUT end-of-stream and any exit that is neither
	// a timeout nor an explicit stop.
	ReasonUnknown StopReason = iota
	// ReasonTimeout means the configured deadline was reached.
	ReasonTimeout
	// ReasonSignal means a stop was requested through a control source.
	ReasonSignal
)

// String returns the reason line logged at termination.
func (r StopReason) String() string {
	switch r {
	case ReasonTimeout:
		return "COMPLETED, timeout reached"
	case ReasonSignal:
		return "STOPPED, stop signal received"
	default:
		return "STOPPED, unknown reason"
	}
}

// Source abstracts the SUT subprocess for the pipeline. The sut package
// provides the real implementation; tests inject byte streams.
type Source interface {
	// Start launches the SUT and returns the read end of its stdout pipe.
	Start(ctx context.Context) (io.Reader, error)
	// Stop closes the pipe and terminates the SUT. Idempotent.
	Stop() error
}

// Config configures a single acquisition.
type Config struct {
	// Source is the SUT byte stream.
	Source Source
	// Conf is the packet layout, selected at start-time.
	Conf channel.Conf
	// Router is the configured sink variant.
	Router sink.Router
	// Control carries the stop and pause flags.
	Control *ControlState
	// Timeout bounds the acquisition. Zero means no timeout.
	Timeout time.Duration
	// Pacing is the sleep between routed events. Zero selects
	// DefaultPacing; negative disables pacing.
	Pacing time.Duration
	// Logger receives pipeline log entries. Nil discards them.
	Logger *log.Logger
}

// Result is the termination accounting for one acquisition.
type Result struct {
	// Events is the number of events emitted to a sink.
	Events int64
	// Duration is the wall-clock acquisition time.
	Duration time.Duration
	// Reason is why the loop exited.
	Reason StopReason
}

// Reporter runs the acquisition pipeline: read packets from the SUT,
// decode, route to the sink, until stop, timeout, or end of stream.
type Reporter struct {
	config    *Config
	startTime time.Time
}

// NewReporter creates a reporter. Returns an error on an incomplete config.
func NewReporter(config *Config) (*Reporter, error) {
	if config.Source == nil {
		return nil, errors.New("reporter config: Source is required")
	}
	if config.Router == nil {
		return nil, errors.New("reporter config: Router is required")
	}
	if config.Control == nil {
		return nil, errors.New("reporter config: Control is required")
	}
	if config.Conf.MaxPkgSize == 0 {
		return nil, errors.New("reporter config: packet layout is required")
	}
	if config.Logger == nil {
		config.Logger = log.Nop()
	}
	return &Reporter{config: config}, nil
}

// Run executes the acquisition end-to-end and always finishes the router
// (poison pill on the broker path, sink closes on both), whatever the exit
// path. The returned Result is valid even when an error is returned.
func (r *Reporter) Run(ctx context.Context) (*Result, error) {
	r.startTime = time.Now()

	events, reason, runErr := r.acquire(ctx)

	// Terminate the SUT before the terminal sink work so no further
	// packets can arrive.
	_ = r.config.Source.Stop()

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	finishErr := r.config.Router.Finish(finishCtx)
	cancel()

	result := &Result{
		Events:   events,
		Duration: time.Since(r.startTime),
		Reason:   reason,
	}

	r.config.Logger.Info("acquisition finished", map[string]any{
		"events":        result.Events,
		"duration_secs": fmt.Sprintf("%.3f", result.Duration.Seconds()),
		"reason":        result.Reason.String(),
	})

	if runErr != nil {
		return result, runErr
	}
	if finishErr != nil {
		return result, &PipelineError{Kind: routeErrorKind(finishErr), Err: finishErr}
	}
	return result, nil
}

// acquire runs the read-decode-route loop. Stop is cooperative: checked at
// loop top, between packets within a batch, and inside the pause spin. An
// in-flight publish is never aborted.
func (r *Reporter) acquire(ctx context.Context) (int64, StopReason, error) {
	cfg := r.config

	stdout, err := cfg.Source.Start(ctx)
	if err != nil {
		return 0, ReasonUnknown, &PipelineError{Kind: PipelineErrorSUT, Err: err}
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = r.startTime.Add(cfg.Timeout)
	}

	// The worker can be parked in a pipe read when a stop or the deadline
	// arrives. The watchdog closes the pipe in that case, turning the
	// blocked read into end of stream.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go r.watchdog(ctx, deadline, watchdogDone)

	pacing := cfg.Pacing
	if pacing == 0 {
		pacing = DefaultPacing
	}

	framer := channel.NewFramer(stdout, cfg.Conf)
	var events int64

	for {
		if cfg.Control.Stopped() || ctx.Err() != nil {
			return events, ReasonSignal, nil
		}

		if cfg.Control.Paused() {
			cfg.Logger.Info("pause requested, holding acquisition", nil)
			for cfg.Control.Paused() && !cfg.Control.Stopped() && ctx.Err() == nil {
				if !deadline.IsZero() && !time.Now().Before(deadline) {
					return events, ReasonTimeout, nil
				}
				time.Sleep(pauseSpin)
			}
			if cfg.Control.Stopped() || ctx.Err() != nil {
				return events, ReasonSignal, nil
			}
			cfg.Logger.Info("resuming acquisition", nil)
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return events, ReasonTimeout, nil
		}

		pkgs, err := framer.ReadBatch()
		if errors.Is(err, io.EOF) {
			switch {
			case cfg.Control.Stopped() || ctx.Err() != nil:
				return events, ReasonSignal, nil
			case !deadline.IsZero() && !time.Now().Before(deadline):
				return events, ReasonTimeout, nil
			default:
				return events, ReasonUnknown, nil
			}
		}
		if err != nil {
			return events, ReasonUnknown, &PipelineError{Kind: PipelineErrorFraming, Err: err}
		}

		for _, pkg := range pkgs {
			if cfg.Control.Stopped() || ctx.Err() != nil {
				return events, ReasonSignal, nil
			}

			ev, err := channel.Decode(pkg, cfg.Conf)
			if err != nil {
				return events, ReasonUnknown, &PipelineError{Kind: PipelineErrorFraming, Err: err}
			}

			if err := cfg.Router.Route(ctx, ev); err != nil {
				return events, ReasonUnknown, &PipelineError{Kind: routeErrorKind(err), Err: err}
			}

			if ev.Kind != channel.KindLogInit {
				events++
			}

			if cfg.Router.EndOfReportSeen() {
				return events, ReasonUnknown, nil
			}

			if pacing > 0 {
				time.Sleep(pacing)
			}
		}
	}
}

// watchdog unblocks a parked pipe read once a stop arrives or the deadline
// passes, by closing the source.
func (r *Reporter) watchdog(ctx context.Context, deadline time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(watchdogPoll)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = r.config.Source.Stop()
			return
		case <-ticker.C:
			if r.config.Control.Stopped() ||
				(!deadline.IsZero() && !time.Now().Before(deadline)) {
				_ = r.config.Source.Stop()
				return
			}
		}
	}
}

// routeErrorKind maps a router failure onto the pipeline error taxonomy.
func routeErrorKind(err error) PipelineErrorKind {
	if broker.IsBrokerError(err) {
		return PipelineErrorBroker
	}
	return PipelineErrorSink
}
