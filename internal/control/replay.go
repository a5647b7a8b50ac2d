package control

import (
	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/eventlog"
)

// recordToLog subscribes to sess's event bus and forwards every event into
// log under sessionID, until the bus closes (on session destroy). It runs
// for the lifetime of the session, independent of how many control clients
// additionally subscribe via StreamEvents.
func recordToLog(log *eventlog.Log, sess *dynamicengine.Session, sessionID string) {
	raw, _ := sess.Events().Subscribe(256)
	go func() {
		for ev := range raw {
			if err := log.Record(sessionID, ev); err != nil {
				// The replay buffer is best-effort: a write failure never
				// affects the live event stream.
				continue
			}
		}
	}()
}

// ReplayEvents returns every event retained for sessionID, oldest first, or
// an empty slice if the dispatcher has no event log configured.
func (d *Dispatcher) ReplayEvents(sessionID string) ([]dynamicengine.Event, error) {
	if d.EventLog == nil {
		return nil, nil
	}
	return d.EventLog.Replay(sessionID)
}
