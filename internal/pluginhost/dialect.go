// Package pluginhost implements the boundary the engine uses to load
// third-party node implementations at runtime and register them into a
// node.Registry alongside the built-in set, per the plugin host contract:
// two dialects (native dynamic library, WASM sandboxed component), kind
// registration under a dialect-prefixed namespace, panic isolation at the
// ABI boundary, and restart-surviving discovery.
package pluginhost

import "fmt"

// Dialect identifies which loading mechanism produced a registered plugin
// kind.
type Dialect string

const (
	DialectNative Dialect = "native"
	DialectWASM   Dialect = "wasm"
)

func (d Dialect) valid() bool {
	return d == DialectNative || d == DialectWASM
}

// prefixedKind applies the dialect's namespace prefix to a plugin-declared
// kind, per the registration rule: plugin::native::{kind} or
// plugin::wasm::{kind}.
func prefixedKind(dialect Dialect, kind string) string {
	return fmt.Sprintf("plugin::%s::%s", dialect, kind)
}
