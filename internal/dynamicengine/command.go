package dynamicengine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/telemetry"
)

// command is anything the session's single-writer control loop can
// execute. Only the loop goroutine ever calls execute, so implementations
// need no locking of their own beyond what Session already provides.
type command interface {
	execute(s *Session)
}

// Mutation is one change requested against a running session's graph, per
// the dynamic engine's add/remove/connect/disconnect/tune surface.
type Mutation struct {
	Op string // "add_node" | "remove_node" | "connect" | "disconnect" | "tune"

	// add_node
	Label string
	Kind  string
	Params json.RawMessage

	// remove_node / tune
	NodeLabel string

	// connect / disconnect
	Connection graph.Connection

	// tune
	TuneParams json.RawMessage
}

// BatchRequest is a set of mutations staged and applied atomically: either
// every mutation in the batch is applied, or none are, per the dynamic
// engine's batch stage/apply/rollback contract.
type BatchRequest struct {
	RequestID   string
	Mutations   []Mutation
	ResultChan  chan BatchResult
}

// BatchResult is delivered once a BatchRequest has been validated and
// either applied or rejected.
type BatchResult struct {
	Applied bool
	Errors  []graph.ValidationError
	Err     error
}

func (b BatchRequest) execute(s *Session) {
	res := s.applyBatch(context.Background(), b)
	if b.ResultChan != nil {
		select {
		case b.ResultChan <- res:
		default:
		}
	}
}

// applyBatch stages every mutation against a clone of the session's current
// graph, re-validates the whole result through the same Compiler used at
// session creation, and only then replaces the live runtime — so a
// rejected batch leaves the running session completely untouched.
//
// A batch containing only "tune" ops skips the rebuild entirely: it is
// applied straight to the already-running node instances via
// UpdateParams, so a parameter change never tears down and recreates
// unrelated nodes' runtime state.
func (s *Session) applyBatch(ctx context.Context, req BatchRequest) BatchResult {
	if allTune(req.Mutations) {
		return s.applyTuneOnly(ctx, req.Mutations)
	}

	ctx, span := tracer.Start(ctx, "dynamicengine.apply_batch", trace.WithAttributes(
		telemetry.SessionAttributes(s.ID, "")...))
	defer span.End()

	s.mu.RLock()
	staged := s.graph.Clone()
	s.mu.RUnlock()

	for _, m := range req.Mutations {
		if err := applyMutation(staged, m); err != nil {
			return BatchResult{Applied: false, Err: err}
		}
	}

	compiler := &graph.Compiler{Registry: s.registry}
	plan, errs := compiler.Compile(staged.Pipeline)
	if plan == nil {
		return BatchResult{Applied: false, Errors: errs}
	}

	if err := s.materialize(plan.Graph); err != nil {
		return BatchResult{Applied: false, Err: err}
	}
	s.mu.Lock()
	s.graph = plan.Graph
	s.mu.Unlock()
	s.events.PublishNonBlocking(Event{Kind: EventMutationApplied, NodeLabel: req.RequestID})
	return BatchResult{Applied: true, Errors: errs}
}

// ValidateBatch stages req's mutations against a clone of the session's
// current graph and runs the same Compiler applyBatch uses, without ever
// touching the live session — the control surface's validatebatch action
// previews what applybatch would do, including its validation warnings,
// with no side effects on success or failure.
func (s *Session) ValidateBatch(req BatchRequest) BatchResult {
	s.mu.RLock()
	staged := s.graph.Clone()
	s.mu.RUnlock()

	for _, m := range req.Mutations {
		if err := applyMutation(staged, m); err != nil {
			return BatchResult{Applied: false, Err: err}
		}
	}

	compiler := &graph.Compiler{Registry: s.registry}
	plan, errs := compiler.Compile(staged.Pipeline)
	if plan == nil {
		return BatchResult{Applied: false, Errors: errs}
	}
	return BatchResult{Applied: true, Errors: errs}
}

func allTune(ms []Mutation) bool {
	if len(ms) == 0 {
		return false
	}
	for _, m := range ms {
		if m.Op != "tune" {
			return false
		}
	}
	return true
}

// applyTuneOnly validates every tune against its node's TunableParams
// before calling UpdateParams on any of them, so a batch with one invalid
// tune leaves every node's parameters untouched.
func (s *Session) applyTuneOnly(ctx context.Context, ms []Mutation) BatchResult {
	s.mu.RLock()
	targets := make([]*nodeRuntime, 0, len(ms))
	for _, m := range ms {
		nr, ok := s.runtime[m.NodeLabel]
		if !ok {
			s.mu.RUnlock()
			return BatchResult{Applied: false, Err: fmt.Errorf("tune: label %q does not exist", m.NodeLabel)}
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(m.TuneParams, &fields); err != nil {
			s.mu.RUnlock()
			return BatchResult{Applied: false, Err: fmt.Errorf("tune: %q: decode params: %w", m.NodeLabel, err)}
		}
		for field := range fields {
			if !nr.def.IsTunable(field) {
				s.mu.RUnlock()
				return BatchResult{Applied: false, Err: fmt.Errorf("tune: %q: parameter %q is not tunable", m.NodeLabel, field)}
			}
		}
		targets = append(targets, nr)
	}
	s.mu.RUnlock()

	for i, m := range ms {
		if err := targets[i].inst.UpdateParams(ctx, m.TuneParams); err != nil {
			return BatchResult{Applied: false, Err: fmt.Errorf("tune: %q: %w", m.NodeLabel, err)}
		}
	}
	return BatchResult{Applied: true}
}

func applyMutation(g *graph.Graph, m Mutation) error {
	switch m.Op {
	case "add_node":
		if _, exists := g.Pipeline.Nodes[m.Label]; exists {
			return fmt.Errorf("add_node: label %q already exists", m.Label)
		}
		g.Pipeline.Nodes[m.Label] = graph.NodeInstance{Label: m.Label, Kind: m.Kind, Params: m.Params}
		g.Pipeline.NodeOrder = append(g.Pipeline.NodeOrder, m.Label)
		return nil

	case "remove_node":
		if _, exists := g.Pipeline.Nodes[m.NodeLabel]; !exists {
			return fmt.Errorf("remove_node: label %q does not exist", m.NodeLabel)
		}
		delete(g.Pipeline.Nodes, m.NodeLabel)
		g.Pipeline.NodeOrder = removeString(g.Pipeline.NodeOrder, m.NodeLabel)
		kept := g.Pipeline.Connections[:0]
		for _, c := range g.Pipeline.Connections {
			if c.FromLabel != m.NodeLabel && c.ToLabel != m.NodeLabel {
				kept = append(kept, c)
			}
		}
		g.Pipeline.Connections = kept
		return nil

	case "connect":
		g.Pipeline.Connections = append(g.Pipeline.Connections, m.Connection)
		return nil

	case "disconnect":
		kept := g.Pipeline.Connections[:0]
		for _, c := range g.Pipeline.Connections {
			if c == m.Connection {
				continue
			}
			kept = append(kept, c)
		}
		g.Pipeline.Connections = kept
		return nil

	case "tune":
		inst, ok := g.Pipeline.Nodes[m.NodeLabel]
		if !ok {
			return fmt.Errorf("tune: label %q does not exist", m.NodeLabel)
		}
		inst.Params = m.TuneParams
		g.Pipeline.Nodes[m.NodeLabel] = inst
		return nil

	default:
		return fmt.Errorf("unknown mutation op %q", m.Op)
	}
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
