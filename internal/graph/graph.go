// Package graph implements the in-memory pipeline representation and the
// compiler that turns a declarative YAML pipeline description into an
// executable plan, per the graph model & compiler contract.
package graph

import (
	"encoding/json"

	"github.com/streamkit/streamkit/internal/channel"
	"github.com/streamkit/streamkit/internal/packet"
)

// Mode is the pipeline's execution mode.
type Mode string

const (
	ModeDynamic Mode = "dynamic"
	ModeOneshot Mode = "oneshot"
)

// ConnMode is a connection's reliability mode.
type ConnMode string

const (
	ConnReliable   ConnMode = "reliable"
	ConnBestEffort ConnMode = "best_effort"
)

// ChannelMode converts a ConnMode to the channel package's Mode.
func (m ConnMode) ChannelMode() channel.Mode {
	if m == ConnBestEffort {
		return channel.BestEffort
	}
	return channel.Reliable
}

// Position is the optional UI layout hint carried on a node instance.
type Position struct {
	X float64
	Y float64
}

// NodeInstance is one entry in a pipeline's label -> instance mapping.
type NodeInstance struct {
	Label    string
	Kind     string
	Params   json.RawMessage
	Position *Position
}

// Connection is a realized link between two pins.
type Connection struct {
	FromLabel string
	FromPin   string
	ToLabel   string
	ToPin     string
	Mode      ConnMode
}

// Pipeline is the declarative, pre-compile pipeline description: the
// label -> NodeInstance mapping plus its ordered connections. `needs`
// sugar has already been rewritten into Connections by the time a Pipeline
// reaches the Compiler (see ParseYAML).
type Pipeline struct {
	Mode        Mode
	Nodes       map[string]NodeInstance
	NodeOrder   []string // declaration order (ParseYAML: sorted labels), for stable diagnostics/emission
	Connections []Connection
}

// Edge is a Connection annotated with its compiler-resolved packet type.
type Edge struct {
	Connection
	ResolvedType packet.PacketType
}

// Graph is the compiled in-memory model: the pipeline plus resolved edge
// types, ready for plan materialization by the dynamic or oneshot engine.
type Graph struct {
	Pipeline Pipeline
	Edges    []Edge
}

// NodeInstance looks up a node by label.
func (g *Graph) NodeInstance(label string) (NodeInstance, bool) {
	n, ok := g.Pipeline.Nodes[label]
	return n, ok
}

// EdgesFrom returns every edge whose FromLabel/FromPin matches.
func (g *Graph) EdgesFrom(label, pin string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.FromLabel == label && e.FromPin == pin {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns every edge whose ToLabel/ToPin matches.
func (g *Graph) EdgesTo(label, pin string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.ToLabel == label && e.ToPin == pin {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep-enough copy of g for batch-staging simulation: nodes
// and connections are copied, so mutating the clone never touches g.
func (g *Graph) Clone() *Graph {
	nodes := make(map[string]NodeInstance, len(g.Pipeline.Nodes))
	for k, v := range g.Pipeline.Nodes {
		nodes[k] = v
	}
	conns := make([]Connection, len(g.Pipeline.Connections))
	copy(conns, g.Pipeline.Connections)
	order := make([]string, len(g.Pipeline.NodeOrder))
	copy(order, g.Pipeline.NodeOrder)
	edges := make([]Edge, len(g.Edges))
	copy(edges, g.Edges)

	return &Graph{
		Pipeline: Pipeline{
			Mode:        g.Pipeline.Mode,
			Nodes:       nodes,
			NodeOrder:   order,
			Connections: conns,
		},
		Edges: edges,
	}
}
