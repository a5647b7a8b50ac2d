// Package control implements the request/response/event envelope and
// action dispatch for StreamKit's external control protocol, modeled on
// the teacher's pipeline API request/response types (internal/pipeline/api)
// generalized from a fixed set of playback intents to the engine's node
// mutation surface.
package control

import "encoding/json"

// MessageType is the envelope's outermost discriminator.
type MessageType string

const (
	TypeRequest  MessageType = "request"
	TypeResponse MessageType = "response"
	TypeEvent    MessageType = "event"
)

// Action is the closed set of actions a Request may carry.
type Action string

const (
	ActionCreateSession  Action = "createsession"
	ActionDestroySession Action = "destroysession"
	ActionListSessions   Action = "listsessions"
	ActionListNodes      Action = "listnodes"
	ActionGetPipeline    Action = "getpipeline"
	ActionAddNode        Action = "addnode"
	ActionRemoveNode     Action = "removenode"
	ActionConnect        Action = "connect"
	ActionDisconnect     Action = "disconnect"
	ActionTuneNode       Action = "tunenode"
	ActionTuneNodeAsync  Action = "tunenodeasync"
	ActionValidateBatch  Action = "validatebatch"
	ActionApplyBatch     Action = "applybatch"
	ActionGetPermissions Action = "getpermissions"
)

// Request is one inbound control-protocol message.
type Request struct {
	Type          MessageType     `json:"type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Action        Action          `json:"action"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Response is one outbound control-protocol message. Action echoes the
// result's semantic name (e.g. "sessioncreated", "pipeline",
// "validationresult") rather than the request action verbatim; a failed
// request always carries Action "error" with Payload an ErrorPayload.
type Response struct {
	Type          MessageType `json:"type"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Action        string      `json:"action"`
	Payload       interface{} `json:"payload,omitempty"`
}

// Event is an unsolicited outbound message, not tied to any Request's
// correlation id, per the control protocol's node telemetry event shape.
type Event struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	NodeID    string      `json:"node_id,omitempty"`
	TypeID    string      `json:"type_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	// TimestampUs is set only when the emitting node supplied a source
	// timestamp; TimestampRFC3339 is always set, stamped on publish.
	TimestampUs      *int64 `json:"timestamp_us,omitempty"`
	TimestampRFC3339 string `json:"timestamp_rfc3339"`
}

// ErrorPayload is the Payload carried by an Action "error" Response.
type ErrorPayload struct {
	Message string `json:"message"`
}

func errorResponse(correlationID string, err error) Response {
	return Response{
		Type:          TypeResponse,
		CorrelationID: correlationID,
		Action:        "error",
		Payload:       ErrorPayload{Message: err.Error()},
	}
}

func okResponse(correlationID, action string, payload interface{}) Response {
	return Response{
		Type:          TypeResponse,
		CorrelationID: correlationID,
		Action:        action,
		Payload:       payload,
	}
}
