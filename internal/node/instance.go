package node

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/packet"
)

// EmitFunc forwards a packet produced during process/flush to the named
// output pin's channel.
type EmitFunc func(pin string, p packet.Packet) error

// TelemetryFunc routes a best-effort observability event to the session
// telemetry bus. It must never block the media path: implementations are
// expected to drop under load rather than apply backpressure.
type TelemetryFunc func(typeID string, data json.RawMessage, timestampUs *int64)

// EmitContext is handed to process/flush so a node can emit packets and
// telemetry without holding a reference to the engine.
type EmitContext struct {
	Emit      EmitFunc
	Telemetry TelemetryFunc
}

// Result is the outcome of a process/update_params/flush call.
type Result int

const (
	// ResultOK indicates the call completed normally.
	ResultOK Result = iota
	// ResultRetry indicates the node wants the same packet redelivered;
	// the engine does not retry on the node's behalf, it is surfaced to
	// the caller of process as a no-op plus advisory result.
	ResultRetry
)

// Instance is the uniform abstraction every node — built-in or plugin —
// implements.
type Instance interface {
	// Process handles one packet arriving on inputPin. It may emit zero,
	// one, or many packets, on any output pin, through ctx.Emit.
	Process(ctx context.Context, inputPin string, p packet.Packet, ectx EmitContext) (Result, error)

	// UpdateParams applies a parameter change. Honored only for parameters
	// the node's Definition lists as tunable; others are rejected.
	UpdateParams(ctx context.Context, params json.RawMessage) error

	// Flush is called once all input channels are closed, letting
	// codecs/mixers drain residual state before the node stops.
	Flush(ctx context.Context, ectx EmitContext) error

	// Destroy releases resources. Must be idempotent.
	Destroy(ctx context.Context) error
}

// Factory constructs a new Instance from JSON params, given a logger scoped
// to this node.
type Factory func(params json.RawMessage, logger zerolog.Logger) (Instance, error)

// Builtin pairs a Definition with the Factory that builds its instances.
// Plugin hosts provide the same pairing across the native/WASM boundary.
type Builtin struct {
	Definition Definition
	New        Factory
}

// Registry resolves a node kind to its Builtin.
type Registry interface {
	Lookup(kind string) (Builtin, bool)
	Definitions() []Definition
}

// MapRegistry is a simple in-memory Registry backed by a map, used by the
// engine's built-in set and composed with the plugin host's registrations.
type MapRegistry struct {
	entries map[string]Builtin
}

// NewMapRegistry constructs an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{entries: make(map[string]Builtin)}
}

// Register adds or replaces the Builtin for a kind.
func (r *MapRegistry) Register(b Builtin) {
	r.entries[b.Definition.Kind] = b
}

// Unregister removes the Builtin for a kind, if present.
func (r *MapRegistry) Unregister(kind string) {
	delete(r.entries, kind)
}

// Lookup implements Registry.
func (r *MapRegistry) Lookup(kind string) (Builtin, bool) {
	b, ok := r.entries[kind]
	return b, ok
}

// Definitions implements Registry.
func (r *MapRegistry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.entries))
	for _, b := range r.entries {
		defs = append(defs, b.Definition)
	}
	return defs
}
