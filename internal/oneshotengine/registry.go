package oneshotengine

import (
	"io"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/node/builtin"
)

// overlayRegistry layers a request-scoped http_input override (bound to
// this one run's live request body) over an Engine's shared base registry,
// without mutating it. Every other lookup falls through to base, so a run
// sees exactly the base registry's builtin and plugin kinds, with
// "http_input" swapped for a body-streaming instance only when body is
// non-nil.
type overlayRegistry struct {
	base      node.Registry
	overrides map[string]node.Builtin
}

func newOverlayRegistry(base node.Registry, body io.Reader) *overlayRegistry {
	r := &overlayRegistry{base: base, overrides: make(map[string]node.Builtin)}
	if body != nil {
		r.overrides[builtin.HTTPInputDefinition.Kind] = node.Builtin{
			Definition: builtin.HTTPInputDefinition,
			New:        newRequestBodySourceFactory(body),
		}
	}
	return r
}

func (r *overlayRegistry) Lookup(kind string) (node.Builtin, bool) {
	if b, ok := r.overrides[kind]; ok {
		return b, true
	}
	return r.base.Lookup(kind)
}

func (r *overlayRegistry) Definitions() []node.Definition {
	defs := r.base.Definitions()
	for kind, b := range r.overrides {
		if _, inBase := r.base.Lookup(kind); inBase {
			continue
		}
		defs = append(defs, b.Definition)
	}
	return defs
}
