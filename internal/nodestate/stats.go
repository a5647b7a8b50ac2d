package nodestate

import (
	"sync/atomic"
	"time"
)

// Stats holds the monotonic counters tracked for a node instance. It is
// safe for concurrent use: the scheduler's task loop, control handlers, and
// the metrics tick all read/write through the atomic accessors.
type Stats struct {
	received atomic.Int64
	sent     atomic.Int64
	discarded atomic.Int64
	errored  atomic.Int64
	start    time.Time
}

// NewStats returns a Stats whose duration clock starts now.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) IncReceived() { s.received.Add(1) }
func (s *Stats) IncSent()     { s.sent.Add(1) }
func (s *Stats) IncDiscarded() { s.discarded.Add(1) }
func (s *Stats) IncErrored()  { s.errored.Add(1) }

// Snapshot is an immutable read of Stats at a point in time, suitable for
// publishing on a NodeStatsUpdated event or a metrics tick.
type Snapshot struct {
	Received     int64
	Sent         int64
	Discarded    int64
	Errored      int64
	DurationSecs float64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received:     s.received.Load(),
		Sent:         s.sent.Load(),
		Discarded:    s.discarded.Load(),
		Errored:      s.errored.Load(),
		DurationSecs: time.Since(s.start).Seconds(),
	}
}
