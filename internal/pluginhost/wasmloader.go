package pluginhost

import (
	"fmt"
	"sync"
)

// ComponentFactory produces the Module a WASM component file resolves to
// once its bytes have been compiled and instantiated by a component-model
// runtime. Wiring a real runtime (compiling .wasm bytes, marshalling
// packets across the sandbox boundary, denying syscalls/fetch unless
// explicitly allowed) is a named collaborator outside this module's scope,
// matching the plugin ABI's own out-of-scope note — wasmLoader models the
// registration and call-boundary contract a real runtime would sit behind.
type ComponentFactory func(path string) (Module, error)

// WASMLoader resolves a .wasm path to a Module through factories registered
// ahead of time (by whatever real runtime integration a deployment wires
// in), rather than compiling bytecode itself.
type WASMLoader struct {
	mu        sync.RWMutex
	factories map[string]ComponentFactory
}

// NewWASMLoader constructs the WASM dialect's Loader.
func NewWASMLoader() *WASMLoader {
	return &WASMLoader{factories: make(map[string]ComponentFactory)}
}

func (l *WASMLoader) Dialect() Dialect { return DialectWASM }

// RegisterComponentFactory binds a component-model runtime's instantiation
// logic to a specific component path. Load refuses any path with no
// registered factory rather than guessing at a runtime to invoke.
func (l *WASMLoader) RegisterComponentFactory(path string, factory ComponentFactory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[path] = factory
}

func (l *WASMLoader) Load(path string) (Module, error) {
	l.mu.RLock()
	factory, ok := l.factories[path]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pluginhost: no WASM component runtime registered for %q", path)
	}
	m, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: instantiate WASM component %q: %w", path, err)
	}
	if m.Metadata().APIVersion != CurrentAPIVersion {
		return nil, fmt.Errorf("pluginhost: WASM component %q api_version %d incompatible with host version %d",
			path, m.Metadata().APIVersion, CurrentAPIVersion)
	}
	return m, nil
}
