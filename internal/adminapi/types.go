package adminapi

import (
	"encoding/json"

	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/nodestate"
)

// nodeInfo and pipelineResponse mirror control.NodeInfo/PipelinePayload but
// are defined locally rather than imported: this surface speaks plain JSON
// over HTTP, not the control envelope, and the two shapes are free to drift
// independently even though today they carry the same fields.
type nodeInfo struct {
	Label  string             `json:"label"`
	Kind   string             `json:"kind"`
	Params json.RawMessage    `json:"params,omitempty"`
	State  nodestate.State    `json:"state"`
	Stats  nodestate.Snapshot `json:"stats"`
}

type pipelineResponse struct {
	SessionID   string             `json:"session_id"`
	Nodes       []nodeInfo         `json:"nodes"`
	Connections []graph.Connection `json:"connections"`
}
