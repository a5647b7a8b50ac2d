package pluginhost

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/metrics"
	"github.com/streamkit/streamkit/internal/node"
)

// ErrKindConflict is returned by Load when the module's dialect-prefixed
// kind is already registered.
var ErrKindConflict = fmt.Errorf("pluginhost: kind already registered")

// ErrKindInUse is returned by Unload when the caller-supplied predicate
// reports the kind still has referencing sessions.
var ErrKindInUse = fmt.Errorf("pluginhost: kind is referenced by a running session")

// ErrKindNotFound is returned by Unload for a kind the host never
// registered.
var ErrKindNotFound = fmt.Errorf("pluginhost: kind not registered")

type entry struct {
	dialect Dialect
	module  Module
}

// Host implements node.Registry over a fixed base registry (the engine's
// built-in kinds) plus a mutable set of plugin registrations layered on
// top, so dynamicengine and oneshotengine see one Registry regardless of
// whether a kind is built in or loaded at runtime.
type Host struct {
	base          node.Registry
	resourceCache ResourceCache
	store         *Store
	logger        zerolog.Logger

	mu      sync.RWMutex
	entries map[string]entry
}

// NewHost constructs a Host over base. store may be nil to disable
// persistence (e.g. in tests); cache may be nil if no plugin in the
// deployment needs shared-resource acquisition.
func NewHost(base node.Registry, store *Store, cache ResourceCache, logger zerolog.Logger) *Host {
	return &Host{
		base:          base,
		resourceCache: cache,
		store:         store,
		logger:        logger,
		entries:       make(map[string]entry),
	}
}

// Lookup implements node.Registry: built-in kinds fall through to base,
// plugin kinds resolve to a Builtin whose factory wraps the module's own
// New in panic recovery and optional resource-cache binding.
func (h *Host) Lookup(kind string) (node.Builtin, bool) {
	h.mu.RLock()
	e, ok := h.entries[kind]
	h.mu.RUnlock()
	if !ok {
		return h.base.Lookup(kind)
	}
	return node.Builtin{
		Definition: e.module.Metadata().Definition,
		New:        h.factory(kind, e.module),
	}, true
}

// Definitions implements node.Registry: base's definitions plus every
// currently registered plugin's.
func (h *Host) Definitions() []node.Definition {
	h.mu.RLock()
	defer h.mu.RUnlock()
	defs := h.base.Definitions()
	for _, e := range h.entries {
		defs = append(defs, e.module.Metadata().Definition)
	}
	return defs
}

func (h *Host) factory(kind string, m Module) node.Factory {
	return func(params json.RawMessage, logger zerolog.Logger) (inst node.Instance, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				metrics.PluginPanicsTotal.WithLabelValues(kind).Inc()
				inst, err = nil, fmt.Errorf("pluginhost: plugin %q trapped at ABI boundary during create: %v", kind, rec)
			}
		}()
		inst, err = m.New(params, logger)
		if err != nil {
			return nil, fmt.Errorf("pluginhost: construct %q: %w", kind, err)
		}
		if rb, ok := inst.(ResourceBound); ok && h.resourceCache != nil {
			rb.BindResources(h.resourceCache)
		}
		return recovering(kind, inst), nil
	}
}

// Load resolves path through loader, registers the resulting module under
// its dialect-prefixed kind, and persists the registration if a Store is
// configured. Returns the registered (prefixed) kind.
func (h *Host) Load(loader Loader, path string) (string, error) {
	mod, err := loader.Load(path)
	if err != nil {
		metrics.PluginLoadsTotal.WithLabelValues(string(loader.Dialect()), "load_error").Inc()
		return "", err
	}
	meta := mod.Metadata()
	kind := prefixedKind(loader.Dialect(), meta.Kind)
	if meta.APIVersion != CurrentAPIVersion {
		metrics.PluginLoadsTotal.WithLabelValues(string(loader.Dialect()), "load_error").Inc()
		return "", fmt.Errorf("pluginhost: %q api_version %d incompatible with host version %d", kind, meta.APIVersion, CurrentAPIVersion)
	}

	h.mu.Lock()
	if _, exists := h.entries[kind]; exists {
		h.mu.Unlock()
		metrics.PluginLoadsTotal.WithLabelValues(string(loader.Dialect()), "conflict").Inc()
		return "", fmt.Errorf("%w: %q", ErrKindConflict, kind)
	}
	if _, exists := h.base.Lookup(kind); exists {
		h.mu.Unlock()
		metrics.PluginLoadsTotal.WithLabelValues(string(loader.Dialect()), "conflict").Inc()
		return "", fmt.Errorf("%w: %q collides with a built-in kind", ErrKindConflict, kind)
	}
	h.entries[kind] = entry{dialect: loader.Dialect(), module: mod}
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.SaveRecord(Record{Kind: kind, Dialect: loader.Dialect(), Path: path, APIVersion: meta.APIVersion}); err != nil {
			h.logger.Warn().Err(err).Str("kind", kind).Msg("pluginhost: failed to persist plugin registration")
		}
	}
	metrics.PluginLoadsTotal.WithLabelValues(string(loader.Dialect()), "success").Inc()
	h.logger.Info().Str("kind", kind).Str("path", path).Msg("pluginhost: plugin registered")
	return kind, nil
}

// Unload removes kind's registration. inUse is called with kind to let the
// caller (which owns session state, not available to this package) refuse
// the unload while a running session still references it.
func (h *Host) Unload(kind string, inUse func(kind string) bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entries[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrKindNotFound, kind)
	}
	if inUse != nil && inUse(kind) {
		return fmt.Errorf("%w: %q", ErrKindInUse, kind)
	}
	delete(h.entries, kind)
	if h.store != nil {
		if err := h.store.DeleteRecord(kind); err != nil {
			h.logger.Warn().Err(err).Str("kind", kind).Msg("pluginhost: failed to delete persisted plugin registration")
		}
	}
	h.logger.Info().Str("kind", kind).Msg("pluginhost: plugin unloaded")
	return nil
}

// RegisteredKinds returns every currently loaded plugin kind (not the
// built-in set from base).
func (h *Host) RegisteredKinds() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	kinds := make([]string, 0, len(h.entries))
	for k := range h.entries {
		kinds = append(kinds, k)
	}
	return kinds
}
