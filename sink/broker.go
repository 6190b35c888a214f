package sink

import (
	"context"

	"github.com/probelab/reporter/broker"
	"github.com/probelab/reporter/channel"
	"github.com/probelab/reporter/log"
	"github.com/probelab/reporter/metrics"
)

// Publisher abstracts the broker client for the router.
// Real implementations publish to AMQP; stubs are used for testing.
type Publisher interface {
	// Publish sends one message body. Must preserve call order.
	Publish(ctx context.Context, contentType string, body []byte) error

	// PublishTermination sends the poison pill.
	PublishTermination(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Verify the broker client implements Publisher.
var _ Publisher = (*broker.Client)(nil)

// BrokerRouter publishes events to a fanout exchange through a codec.
// Delivery is at-most-once: a failed publish drops the event and aborts
// the acquisition.
type BrokerRouter struct {
	publisher   Publisher
	codec       broker.Codec
	counters    *metrics.Counters
	logger      *log.Logger
	endOfReport bool
	finished    bool
	pillSent    bool
}

// NewBrokerRouter creates a broker router publishing through publisher with
// the given body codec.
func NewBrokerRouter(publisher Publisher, codec broker.Codec, counters *metrics.Counters, logger *log.Logger) *BrokerRouter {
	return &BrokerRouter{
		publisher: publisher,
		codec:     codec,
		counters:  counters,
		logger:    logger,
	}
}

// Route implements Router. Kind-4 records mark the end of the report and
// publish nothing; every other kind publishes exactly one message.
func (r *BrokerRouter) Route(ctx context.Context, ev channel.Event) error {
	if r.finished {
		return &SinkError{Op: "write", Err: ErrSinkClosed}
	}

	if ev.Kind == channel.KindLogInit {
		r.endOfReport = true
		r.logger.Info("end of report received from SUT", map[string]any{
			"timestamp": ev.Timestamp,
		})
		return nil
	}

	body, err := r.codec.Encode(ev)
	if err != nil {
		return &SinkError{Op: "write", Err: err}
	}
	if err := r.publisher.Publish(ctx, r.codec.ContentType(), body); err != nil {
		return err
	}

	switch ev.Kind {
	case channel.KindTimed:
		r.counters.IncTimed()
	case channel.KindState:
		r.counters.IncState()
	case channel.KindProcess:
		r.counters.IncProcess()
	case channel.KindComponent, channel.KindSelfLogged:
		r.counters.IncComponent()
	}
	return nil
}

// EndOfReportSeen implements Router.
func (r *BrokerRouter) EndOfReportSeen() bool {
	return r.endOfReport
}

// Finish implements Router. The poison pill is published at most once and
// unconditionally on the exit reason; a failed emission is critical and
// surfaced to the caller. The connection is closed either way.
func (r *BrokerRouter) Finish(ctx context.Context) error {
	if r.finished {
		return nil
	}
	r.finished = true

	var pillErr error
	if !r.pillSent {
		r.pillSent = true
		if pillErr = r.publisher.PublishTermination(ctx); pillErr != nil {
			r.logger.Critical("poison pill emission failed", map[string]any{
				"error": pillErr.Error(),
			})
		} else {
			r.logger.Info("poison pill sent", nil)
		}
	}

	if err := r.publisher.Close(); err != nil {
		r.logger.Warn("broker close failed", map[string]any{
			"error": err.Error(),
		})
	}
	return pillErr
}
