package node

import (
	"encoding/json"

	"github.com/streamkit/streamkit/internal/packet"
)

// Role classifies a node by its pin shape: source (no inputs), sink (no
// outputs), or transform (both).
type Role int

const (
	RoleTransform Role = iota
	RoleSource
	RoleSink
)

func (r Role) String() string {
	switch r {
	case RoleSource:
		return "source"
	case RoleSink:
		return "sink"
	default:
		return "transform"
	}
}

// Definition is the descriptor shared between built-in nodes and plugins.
type Definition struct {
	Kind           string
	Description    string
	ParamSchema    json.RawMessage // JSON-schema for Params
	Inputs         []InputPin
	Outputs        []OutputPin
	Categories     []string // free-form tags, including "oneshot"/"dynamic" mode affinities
	Bidirectional  bool     // allows the node to participate in a self-loop or cycle
	TunableParams  []string // parameter names honored by UpdateParams

	// Narrow resolves a parameter-dependent narrowing of a declared output
	// type (e.g. a resampler whose output sample_rate comes from a
	// target_sample_rate parameter). Nil means the declared output type is
	// used as-is. The compiler calls this before running compatibility
	// checks, never special-casing narrowing itself.
	Narrow func(params json.RawMessage, declared packet.PacketType) packet.PacketType
}

// Classify derives the node's Role from its pin counts, per the node
// runtime contract.
func Classify(def Definition) Role {
	switch {
	case len(def.Inputs) == 0:
		return RoleSource
	case len(def.Outputs) == 0:
		return RoleSink
	default:
		return RoleTransform
	}
}

// HasCategory reports whether def advertises the given category tag.
func (d Definition) HasCategory(tag string) bool {
	for _, c := range d.Categories {
		if c == tag {
			return true
		}
	}
	return false
}

// IsTunable reports whether the named parameter may be changed through
// UpdateParams after creation.
func (d Definition) IsTunable(param string) bool {
	for _, p := range d.TunableParams {
		if p == param {
			return true
		}
	}
	return false
}

// InputPin looks up an input pin by name.
func (d Definition) InputPin(name string) (InputPin, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputPin{}, false
}

// OutputPin looks up an output pin by name.
func (d Definition) OutputPin(name string) (OutputPin, bool) {
	for _, out := range d.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return OutputPin{}, false
}

// DefaultOutputPin returns the pin used to rewrite a bare `needs` reference:
// the node's sole output, or its first declared output if there are several.
func (d Definition) DefaultOutputPin() (OutputPin, bool) {
	if len(d.Outputs) == 0 {
		return OutputPin{}, false
	}
	return d.Outputs[0], true
}
