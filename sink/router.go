package sink

import (
	"context"

	"github.com/probelab/reporter/channel"
)

// Router delivers decoded events to the configured sink set. The
// acquisition worker is the single caller; implementations need no
// internal locking.
type Router interface {
	// Route delivers one event. A counter advances only for an event that
	// was emitted to a sink; invalid events are emitted but advance none.
	Route(ctx context.Context, ev channel.Event) error

	// EndOfReportSeen reports whether the stream signaled completion.
	// Only the broker variant interprets kind-4 records this way; the
	// file variant always returns false.
	EndOfReportSeen() bool

	// Finish emits any terminal record and releases the sink set.
	// Idempotent; called exactly once per acquisition on every exit path.
	Finish(ctx context.Context) error
}
