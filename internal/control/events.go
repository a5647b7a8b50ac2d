package control

import (
	"time"

	"github.com/streamkit/streamkit/internal/dynamicengine"
)

// StreamEvents subscribes to sess's telemetry/lifecycle bus and translates
// each dynamicengine.Event into a control-protocol Event envelope, stamped
// with the wall-clock time it crossed the control boundary. The returned
// unsubscribe func must be called once the caller is done forwarding
// events to its transport.
func StreamEvents(sess *dynamicengine.Session, sessionID string, capacity int) (<-chan Event, func()) {
	raw, unsubscribe := sess.Events().Subscribe(capacity)
	out := make(chan Event, capacity)
	go func() {
		defer close(out)
		for ev := range raw {
			out <- translateEvent(sessionID, ev)
		}
	}()
	return out, unsubscribe
}

func translateEvent(sessionID string, ev dynamicengine.Event) Event {
	typeID := ev.TypeID
	var data interface{} = ev.Data
	if typeID == "" {
		typeID = eventKindTypeID(ev.Kind)
	}
	return Event{
		Type:             TypeEvent,
		SessionID:        sessionID,
		NodeID:           ev.NodeLabel,
		TypeID:           typeID,
		Data:             data,
		TimestampUs:      ev.TimestampUs,
		TimestampRFC3339: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func eventKindTypeID(kind dynamicengine.EventKind) string {
	switch kind {
	case dynamicengine.EventNodeStateChanged:
		return "nodestatechanged"
	case dynamicengine.EventMutationApplied:
		return "mutationapplied"
	default:
		return "nodetelemetry"
	}
}
