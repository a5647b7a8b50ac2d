package pluginhost

import (
	"fmt"
	"plugin"
)

// nativeModuleSymbol is the exported symbol every native plugin .so must
// provide: a value implementing Module. This is the Go expression of the
// contract's "single symbol returning a versioned function-table" — the
// dynamic loader resolves the symbol, the interface assertion is the
// function-table handoff.
const nativeModuleSymbol = "StreamKitModule"

// nativeLoader loads native dynamic libraries via the standard library's
// plugin package, the only mechanism the Go runtime offers for this — no
// third-party library in the stack substitutes for OS-level shared object
// loading.
type nativeLoader struct{}

// NewNativeLoader constructs the native dialect's Loader.
func NewNativeLoader() Loader { return nativeLoader{} }

func (nativeLoader) Dialect() Dialect { return DialectNative }

func (nativeLoader) Load(path string) (mod Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, fmt.Errorf("pluginhost: native plugin %q panicked during load: %v", path, r)
		}
	}()

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: open native plugin %q: %w", path, err)
	}
	sym, err := p.Lookup(nativeModuleSymbol)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: native plugin %q missing symbol %q: %w", path, nativeModuleSymbol, err)
	}
	m, ok := sym.(Module)
	if !ok {
		return nil, fmt.Errorf("pluginhost: native plugin %q symbol %q does not implement Module", path, nativeModuleSymbol)
	}
	if m.Metadata().APIVersion != CurrentAPIVersion {
		return nil, fmt.Errorf("pluginhost: native plugin %q api_version %d incompatible with host version %d",
			path, m.Metadata().APIVersion, CurrentAPIVersion)
	}
	return m, nil
}
