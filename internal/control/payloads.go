package control

import (
	"encoding/json"

	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/nodestate"
)

// CreateSessionPayload is the createsession request payload: a pipeline
// document in the graph package's YAML authoring syntax, and an optional
// caller-chosen id (empty generates one).
type CreateSessionPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Pipeline  string `json:"pipeline"`
}

// SessionCreatedPayload is the sessioncreated response payload.
type SessionCreatedPayload struct {
	SessionID string `json:"session_id"`
}

// SessionIDPayload names a running session, for destroysession and any
// action that addresses a single session by id.
type SessionIDPayload struct {
	SessionID string `json:"session_id"`
}

// SessionListPayload is the listsessions response payload.
type SessionListPayload struct {
	SessionIDs []string `json:"session_ids"`
}

// NodeKindInfo describes one registered node kind, trimmed to what a
// client needs to author a pipeline against it — Definition.Narrow is a
// func value and never serializes.
type NodeKindInfo struct {
	Kind          string          `json:"kind"`
	Description   string          `json:"description,omitempty"`
	Role          string          `json:"role"`
	Categories    []string        `json:"categories,omitempty"`
	TunableParams []string        `json:"tunable_params,omitempty"`
	ParamSchema   json.RawMessage `json:"param_schema,omitempty"`
}

func nodeKindInfo(def node.Definition) NodeKindInfo {
	return NodeKindInfo{
		Kind:          def.Kind,
		Description:   def.Description,
		Role:          node.Classify(def).String(),
		Categories:    def.Categories,
		TunableParams: def.TunableParams,
		ParamSchema:   def.ParamSchema,
	}
}

// NodeListPayload is the listnodes response payload.
type NodeListPayload struct {
	Kinds []NodeKindInfo `json:"kinds"`
}

// NodeInfo is one node's static description plus its live runtime state,
// for the getpipeline response.
type NodeInfo struct {
	Label  string              `json:"label"`
	Kind   string              `json:"kind"`
	Params json.RawMessage     `json:"params,omitempty"`
	State  nodestate.State     `json:"state"`
	Stats  nodestate.Snapshot  `json:"stats"`
}

// PipelinePayload is the getpipeline response payload.
type PipelinePayload struct {
	SessionID   string             `json:"session_id"`
	Nodes       []NodeInfo         `json:"nodes"`
	Connections []graph.Connection `json:"connections"`
}

// AddNodePayload is the addnode request payload.
type AddNodePayload struct {
	SessionID string          `json:"session_id"`
	Label     string          `json:"label"`
	Kind      string          `json:"kind"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// RemoveNodePayload is the removenode request payload.
type RemoveNodePayload struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
}

// ConnectionPayload is the connect/disconnect request payload.
type ConnectionPayload struct {
	SessionID  string           `json:"session_id"`
	Connection graph.Connection `json:"connection"`
}

// TuneNodePayload is the tunenode/tunenodeasync request payload.
type TuneNodePayload struct {
	SessionID string          `json:"session_id"`
	Label     string          `json:"label"`
	Params    json.RawMessage `json:"params"`
}

// BatchPayload is the validatebatch/applybatch request payload.
type BatchPayload struct {
	SessionID string                  `json:"session_id"`
	Mutations []dynamicengine.Mutation `json:"mutations"`
}

// BatchResultPayload is the validationresult/batchapplied response payload.
type BatchResultPayload struct {
	Applied bool                     `json:"applied"`
	Errors  []graph.ValidationError  `json:"errors,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

func batchResultPayload(res dynamicengine.BatchResult) BatchResultPayload {
	p := BatchResultPayload{Applied: res.Applied, Errors: res.Errors}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return p
}

// SuccessPayload is the generic success acknowledgement for mutation
// actions that return no further data beyond "it happened".
type SuccessPayload struct {
	Applied bool `json:"applied"`
}

// GetPermissionsPayload is the getpermissions response payload: the kinds
// the caller-supplied predicate currently permits, out of every kind the
// registry knows about.
type GetPermissionsPayload struct {
	AllowedKinds []string `json:"allowed_kinds"`
}
