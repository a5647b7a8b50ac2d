package builtin

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

// IdentityDefinition describes identity: forwards every packet it receives
// unchanged. Its output type is Passthrough, resolved by the compiler from
// whatever feeds its single input — used as a stand-in transform in graphs
// that don't yet have a real node for a stage, and in tests exercising
// multi-hop passthrough resolution.
var IdentityDefinition = node.Definition{
	Kind:        "identity",
	Description: "forwards every packet unchanged",
	Inputs: []node.InputPin{
		{Name: "in", Cardinality: node.CardinalityOne, Accepts: []packet.PacketType{packet.AnyType}},
	},
	Outputs: []node.OutputPin{
		{Name: "out", Cardinality: node.CardinalityBroadcast, Produces: packet.PassthroughType},
	},
	Categories: []string{"oneshot", "dynamic"},
}

type identity struct{}

// NewIdentity constructs an identity instance.
func NewIdentity(json.RawMessage, zerolog.Logger) (node.Instance, error) {
	return identity{}, nil
}

func (identity) Process(_ context.Context, _ string, p packet.Packet, ectx node.EmitContext) (node.Result, error) {
	return node.ResultOK, ectx.Emit("out", p)
}

func (identity) UpdateParams(context.Context, json.RawMessage) error { return nil }
func (identity) Flush(context.Context, node.EmitContext) error       { return nil }
func (identity) Destroy(context.Context) error                      { return nil }
