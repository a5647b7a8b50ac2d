// Package node defines the uniform contract every node — built-in or
// plugin — implements, and the pin/definition model the graph compiler
// type-checks against.
package node

import "github.com/streamkit/streamkit/internal/packet"

// Cardinality describes how many peer connections a pin may carry.
type Cardinality int

const (
	// CardinalityOne permits exactly one peer connection.
	CardinalityOne Cardinality = iota
	// CardinalityBroadcast permits any number of peer connections, each
	// receiving every packet sent on the pin.
	CardinalityBroadcast
	// CardinalityDynamic is a template: peer connections synthesize
	// concrete pins named "{Prefix}_0", "{Prefix}_1", ... on demand.
	CardinalityDynamic
)

// InputPin is an ordered, named, typed input endpoint on a node.
type InputPin struct {
	Name        string
	Cardinality Cardinality
	// Prefix is set when Cardinality == CardinalityDynamic; concrete
	// synthesized pins are named "{Prefix}_0", "{Prefix}_1", ...
	Prefix string
	// Accepts is the ordered list of types this pin will receive; a
	// producer is compatible if it matches at least one entry.
	Accepts []packet.PacketType
}

// OutputPin is a named, typed output endpoint on a node.
type OutputPin struct {
	Name        string
	Cardinality Cardinality
	// Produces is the type this pin emits. May be packet.PassthroughType,
	// resolved by the compiler from the node's single input pin.
	Produces packet.PacketType
}

// DynamicPinName formats the concrete pin name synthesized for the N-th
// connection made against a Dynamic pin template with the given prefix.
func DynamicPinName(prefix string, n int) string {
	return dynamicName(prefix, n)
}
