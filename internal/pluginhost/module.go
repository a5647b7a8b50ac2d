package pluginhost

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
)

// CurrentAPIVersion is the host's bit-stable ABI version. A module
// advertising a different major version is rejected at load, per the
// persisted-state contract's "incompatible versions cause the plugin to be
// rejected at load."
const CurrentAPIVersion = 1

// Metadata is what a loaded module reports about itself before the host
// registers it: the undecorated kind (the host applies the dialect prefix),
// the shared node descriptor, and the ABI version it was built against.
type Metadata struct {
	Kind       string
	APIVersion int
	Definition node.Definition
}

// Module is the function-table contract every dialect's loader must resolve
// a loaded file down to. It is deliberately the same Go interface whether
// the underlying mechanism is a Go plugin.Symbol or a WASM component
// export — the ABI description in the contract (api_version, metadata,
// create, process, update_params, flush, destroy) maps directly onto an
// interface boundary in idiomatic Go, which is the native expression of a
// C-style function table here.
type Module interface {
	Metadata() Metadata

	// New constructs one instance of the module's node kind. The returned
	// node.Instance's Process/UpdateParams/Flush/Destroy methods are called
	// exactly as a built-in's would be; the host wraps every call at the
	// loader boundary so a plugin panic never escapes past this method.
	New(params json.RawMessage, logger zerolog.Logger) (node.Instance, error)
}

// ResourceCache is the host-provided acquire/release surface plugins use
// for shared, reference-counted resources (ML models, shared dictionaries),
// per the shared-resource policy. Host holds one optional ResourceCache;
// internal/rescache's Cache type satisfies this interface.
type ResourceCache interface {
	Acquire(kind string, params json.RawMessage) (handle interface{}, err error)
	Release(handle interface{})
}

// ResourceBound is implemented by a plugin instance that wants the host's
// ResourceCache wired in after construction. Most plugins (and every
// built-in) don't need it, so it's an optional interface rather than a
// New() parameter every Module would otherwise have to accept.
type ResourceBound interface {
	BindResources(cache ResourceCache)
}

// Loader resolves a file on disk to a Module for one dialect. nativeloader
// and wasmloader are the two implementations.
type Loader interface {
	Dialect() Dialect
	Load(path string) (Module, error)
}
