// Package oneshotengine runs a pipeline exactly once against a request's
// media body and writes its collected output to a response writer, then
// tears everything down. Modeled on the teacher's request-scoped ffmpeg
// runner (internal/pipeline/exec/ffmpeg/runner.go) — one bounded run per
// request, torn down on completion or error — generalized from a single
// subprocess to an arbitrary compiled node graph.
package oneshotengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/streamkit/streamkit/internal/channel"
	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/node/builtin"
	"github.com/streamkit/streamkit/internal/nodestate"
	"github.com/streamkit/streamkit/internal/packet"
	"github.com/streamkit/streamkit/internal/telemetry"
)

var tracer = telemetry.Tracer("streamkit/oneshotengine")

// ErrAtCapacity is returned by Run when the engine already has
// MaxConcurrent runs in flight.
var ErrAtCapacity = errors.New("oneshotengine: engine at capacity")

// Engine runs stateless, single-pass pipelines under a fixed concurrency
// ceiling. Unlike dynamicengine.Engine it holds no per-run state once Run
// returns: there is nothing to look up, tune, or stop after the fact.
type Engine struct {
	Registry node.Registry
	Profile  Profile
	Logger   zerolog.Logger

	maxConcurrent int64
	sem           *semaphore.Weighted
	activeGauge   prometheus.Gauge
}

// NewEngine constructs an Engine admitting at most maxConcurrent runs at
// once.
func NewEngine(registry node.Registry, profile Profile, maxConcurrent int64, logger zerolog.Logger) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Engine{
		Registry:      registry,
		Profile:       profile,
		Logger:        logger,
		maxConcurrent: maxConcurrent,
		sem:           semaphore.NewWeighted(maxConcurrent),
		activeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamkit_oneshot_runs_active",
			Help: "Number of currently running oneshot pipeline executions.",
		}),
	}
}

// Drain blocks until every in-flight Run has released the admission
// semaphore, or ctx is cancelled first. A daemon calls this during shutdown
// after it has stopped accepting new requests, so it never returns while a
// run is still writing to a response.
func (e *Engine) Drain(ctx context.Context) error {
	if err := e.sem.Acquire(ctx, e.maxConcurrent); err != nil {
		return err
	}
	e.sem.Release(e.maxConcurrent)
	return nil
}

// Collector exposes the engine's active-run gauge for Prometheus
// registration.
func (e *Engine) Collector() prometheus.Collector { return e.activeGauge }

// Result reports the terminal state and packet counters of every node in a
// finished run, plus the MIME type the collected response bytes were
// tagged with by whichever sink produced them.
type Result struct {
	NodeStates  map[string]nodestate.State
	Stats       map[string]nodestate.Snapshot
	ContentType string
}

// Run compiles pipeline against the engine's shared registry, overlaying a
// body-streaming override onto the http_input kind when body is non-nil
// (the pipeline's declared http_input source then streams the request's
// live media instead of performing a real HTTP fetch), runs one task per
// node to completion under a single errgroup.Group, and writes whatever
// the pipeline's sink collected to response. body may be nil for a
// pipeline whose source genuinely is a remote URL or a local file_reader.
//
// Run blocks until every node task has finished, ctx is cancelled, or
// deadline elapses, whichever comes first. It admits at most
// MaxConcurrent concurrent runs; a run that would exceed that ceiling
// returns ErrAtCapacity immediately rather than queuing, mirroring the
// dynamic engine's non-blocking admission gate.
func (e *Engine) Run(ctx context.Context, pipeline graph.Pipeline, isKindAllowed func(string) bool, body io.Reader, response io.Writer, deadline time.Duration) (*Result, error) {
	if !e.sem.TryAcquire(1) {
		return nil, ErrAtCapacity
	}
	defer e.sem.Release(1)
	e.activeGauge.Inc()
	defer e.activeGauge.Dec()

	ctx, span := tracer.Start(ctx, "oneshotengine.run", trace.WithAttributes(
		telemetry.PipelineAttributes(string(pipeline.Mode), len(pipeline.Nodes))...))
	defer span.End()

	registry := newOverlayRegistry(e.Registry, body)
	compiler := &graph.Compiler{Registry: registry, IsKindAllowed: isKindAllowed}
	plan, errs := compiler.Compile(pipeline)
	if plan == nil {
		return nil, &graph.CompileError{Errors: errs}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	runtimes, err := materialize(plan.Graph, registry, e.Profile, e.Logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, rt := range runtimes {
			for _, dist := range rt.outs {
				dist.CloseAll()
			}
			_ = rt.inst.Destroy(context.Background())
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	for _, rt := range runtimes {
		rt.apply(nodestate.EvReady)
		rt.apply(nodestate.EvRun)
		rt := rt
		g.Go(func() error {
			return runNodeTask(gctx, rt)
		})
	}
	runErr := g.Wait()

	result := &Result{
		NodeStates: make(map[string]nodestate.State, len(runtimes)),
		Stats:      make(map[string]nodestate.Snapshot, len(runtimes)),
	}
	var collected []byte
	haveCollected := false
	for label, rt := range runtimes {
		result.NodeStates[label] = rt.snapshot()
		result.Stats[label] = rt.stats.Snapshot()
		if c, ok := rt.inst.(builtin.Collector); ok && !haveCollected {
			collected = c.Collected()
			result.ContentType = c.ContentType()
			haveCollected = true
		}
	}

	if runErr != nil {
		return result, runErr
	}
	if response != nil && haveCollected {
		if _, err := response.Write(collected); err != nil {
			return result, fmt.Errorf("oneshotengine: write response: %w", err)
		}
	}
	return result, nil
}

// nodeRun pairs a running node.Instance with its wiring and lifecycle
// state for the duration of one Run call. Smaller than dynamicengine's
// nodeRuntime: a oneshot run's nodes never change state under a mutation
// mailbox, so there is no need for the mutex dynamicengine's version
// guards concurrent Submit/State/Stats access with — nothing ever writes
// these fields except the owning task goroutine and the final collection
// loop after g.Wait returns.
type nodeRun struct {
	label  string
	inst   node.Instance
	def    node.Definition
	inputs map[string]*channel.Channel
	outs   map[string]*channel.Distributor

	state nodestate.State
	stats *nodestate.Stats
}

func (rt *nodeRun) apply(ev nodestate.Event) {
	if next, ok := nodestate.Apply(rt.state.Kind, ev); ok {
		rt.state = nodestate.State{Kind: next}
	}
}

func (rt *nodeRun) snapshot() nodestate.State { return rt.state }

func materialize(g *graph.Graph, registry node.Registry, profile Profile, logger zerolog.Logger) (map[string]*nodeRun, error) {
	runtimes := make(map[string]*nodeRun, len(g.Pipeline.Nodes))

	for _, label := range g.Pipeline.NodeOrder {
		inst := g.Pipeline.Nodes[label]
		b, ok := registry.Lookup(inst.Kind)
		if !ok {
			return nil, fmt.Errorf("oneshotengine: unknown kind %q for node %q", inst.Kind, label)
		}
		nodeLogger := logger.With().Str("node", label).Str("kind", inst.Kind).Logger()
		created, err := b.New(inst.Params, nodeLogger)
		if err != nil {
			return nil, fmt.Errorf("oneshotengine: create %q: %w", label, err)
		}
		rt := &nodeRun{
			label:  label,
			inst:   created,
			def:    b.Definition,
			inputs: make(map[string]*channel.Channel),
			outs:   make(map[string]*channel.Distributor),
			state:  nodestate.State{Kind: nodestate.Initializing},
			stats:  nodestate.NewStats(),
		}
		for _, out := range b.Definition.Outputs {
			rt.outs[out.Name] = channel.NewDistributor()
		}
		runtimes[label] = rt
	}

	for _, edge := range g.Edges {
		dst := runtimes[edge.ToLabel]
		src := runtimes[edge.FromLabel]
		if dst == nil || src == nil {
			continue
		}
		ch, ok := dst.inputs[edge.ToPin]
		if !ok {
			ch = channel.New(profile.bufferSize(), edge.Mode.ChannelMode())
			dst.inputs[edge.ToPin] = ch
		}
		dist, ok := src.outs[edge.FromPin]
		if !ok {
			dist = channel.NewDistributor()
			src.outs[edge.FromPin] = dist
		}
		dist.Subscribe(edge.ToLabel+"."+edge.ToPin, ch)
	}

	return runtimes, nil
}

// runNodeTask drives one node from Initializing to Stopped or Failed. It
// is run as one task per node under Run's errgroup.Group; unlike
// dynamicengine's equivalent, a failure here is returned rather than
// swallowed, because a oneshot run's nodes genuinely do share one fate —
// there are no sibling sessions to protect, and the caller waiting on the
// HTTP response needs to know the run failed, not just that one of its
// nodes silently stopped producing.
func runNodeTask(ctx context.Context, rt *nodeRun) error {
	ectx := node.EmitContext{
		Emit: func(pin string, p packet.Packet) error {
			dist, ok := rt.outs[pin]
			if !ok {
				return fmt.Errorf("node %q: unknown output pin %q", rt.label, pin)
			}
			if err := dist.Publish(p); err != nil {
				rt.stats.IncDiscarded()
				return err
			}
			rt.stats.IncSent()
			return nil
		},
		// A oneshot run has no session event bus to forward telemetry to;
		// it is silently discarded, matching the "must never backpressure
		// the media path" contract by construction.
		Telemetry: func(string, json.RawMessage, *int64) {},
	}
	// Once the node stops, close its outputs so downstream nodes observe
	// end-of-stream.
	defer func() {
		for _, dist := range rt.outs {
			dist.CloseAll()
		}
	}()

	if len(rt.inputs) == 0 {
		if err := rt.inst.Flush(ctx, ectx); err != nil {
			rt.apply(nodestate.EvFail)
			rt.state.Reason = err.Error()
			return fmt.Errorf("node %q: %w", rt.label, err)
		}
		rt.apply(nodestate.EvStop)
		return nil
	}

	selector := newInputSelector(ctx, rt.inputs)
	for {
		pin, recv, done := selector.recv()
		if done {
			if err := rt.inst.Flush(context.Background(), ectx); err != nil {
				rt.apply(nodestate.EvFail)
				rt.state.Reason = err.Error()
				return fmt.Errorf("node %q: %w", rt.label, err)
			}
			rt.apply(nodestate.EvStop)
			return nil
		}
		if recv.err != nil {
			if recv.err == channel.EndOfStream || recv.err == channel.ErrClosed {
				selector.dropPin(pin)
				continue
			}
			rt.apply(nodestate.EvFail)
			rt.state.Reason = recv.err.Error()
			return fmt.Errorf("node %q: %w", rt.label, recv.err)
		}
		rt.stats.IncReceived()
		if _, err := rt.inst.Process(ctx, pin, recv.packet, ectx); err != nil {
			rt.stats.IncErrored()
			rt.apply(nodestate.EvFail)
			rt.state.Reason = err.Error()
			return fmt.Errorf("node %q: %w", rt.label, err)
		}
	}
}
