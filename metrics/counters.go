// Package metrics provides the per-acquisition event counters.
//
// Counters is a leaf type with no internal dependencies. The acquisition
// worker is the only writer; status observers read atomically and need not
// see a consistent snapshot across the four counters.
package metrics

import "sync/atomic"

// Snapshot is a point-in-time view of the counters. Safe to read
// concurrently after creation.
type Snapshot struct {
	Timed     int64
	State     int64
	Process   int64
	Component int64
}

// Total returns the sum of all four counters.
func (s Snapshot) Total() int64 {
	return s.Timed + s.State + s.Process + s.Component
}

// Counters accumulates per-kind event counts during one acquisition.
// All increment methods are nil-receiver safe.
type Counters struct {
	timed     atomic.Int64
	state     atomic.Int64
	process   atomic.Int64
	component atomic.Int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// IncTimed records an emitted timed event.
func (c *Counters) IncTimed() {
	if c == nil {
		return
	}
	c.timed.Add(1)
}

// IncState records an emitted state event.
func (c *Counters) IncState() {
	if c == nil {
		return
	}
	c.state.Add(1)
}

// IncProcess records an emitted process event.
func (c *Counters) IncProcess() {
	if c == nil {
		return
	}
	c.process.Add(1)
}

// IncComponent records an emitted component event, self-logged included.
func (c *Counters) IncComponent() {
	if c == nil {
		return
	}
	c.component.Add(1)
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Timed:     c.timed.Load(),
		State:     c.state.Load(),
		Process:   c.process.Load(),
		Component: c.component.Load(),
	}
}
