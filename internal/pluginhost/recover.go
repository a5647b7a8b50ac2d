package pluginhost

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamkit/streamkit/internal/metrics"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

// recoveringInstance wraps a plugin-produced node.Instance so a panic
// inside any of its four methods becomes an error return instead of
// crashing the session's task goroutine, per the failure isolation
// contract: "the host traps the panic at the ABI boundary ... marks only
// its instance as Failed." The engine's existing node-failure path
// (identical for a built-in returning an error) takes care of the state
// transition and event emission — this wrapper only needs to stop the
// panic from propagating.
type recoveringInstance struct {
	kind  string
	inner node.Instance
}

func recovering(kind string, inner node.Instance) node.Instance {
	return &recoveringInstance{kind: kind, inner: inner}
}

func (r *recoveringInstance) Process(ctx context.Context, inputPin string, p packet.Packet, ectx node.EmitContext) (result node.Result, err error) {
	defer r.recover(&err)
	return r.inner.Process(ctx, inputPin, p, ectx)
}

func (r *recoveringInstance) UpdateParams(ctx context.Context, params json.RawMessage) (err error) {
	defer r.recover(&err)
	return r.inner.UpdateParams(ctx, params)
}

func (r *recoveringInstance) Flush(ctx context.Context, ectx node.EmitContext) (err error) {
	defer r.recover(&err)
	return r.inner.Flush(ctx, ectx)
}

func (r *recoveringInstance) Destroy(ctx context.Context) (err error) {
	defer r.recover(&err)
	return r.inner.Destroy(ctx)
}

func (r *recoveringInstance) recover(err *error) {
	if rec := recover(); rec != nil {
		metrics.PluginPanicsTotal.WithLabelValues(r.kind).Inc()
		*err = fmt.Errorf("pluginhost: plugin %q trapped at ABI boundary: %v", r.kind, rec)
	}
}
