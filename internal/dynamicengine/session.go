// Package dynamicengine runs long-lived, mutable pipelines: sessions whose
// graph can be changed node-by-node while packets keep flowing, modeled on
// the teacher's session orchestrator/registry/lifecycle machinery but
// driving a streamkit graph.Plan instead of a tuner/transcoder pipeline.
package dynamicengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/streamkit/streamkit/internal/channel"
	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/nodestate"
	"github.com/streamkit/streamkit/internal/packet"
)

// telemetryRateLimit bounds how often a session's event bus accepts
// telemetry events per second; the media path must never block on a slow
// telemetry consumer, so excess events are dropped rather than queued.
const telemetryRateLimit = 200

// nodeRuntime pairs a running node.Instance with its state machine, stats,
// and wiring: one input Channel per declared input pin, one Distributor per
// output pin.
type nodeRuntime struct {
	label  string
	inst   node.Instance
	def    node.Definition
	inputs map[string]*channel.Channel     // pin name -> inbound queue
	outs   map[string]*channel.Distributor // pin name -> fan-out

	mu    sync.Mutex
	state nodestate.State
	stats *nodestate.Stats
}

func (nr *nodeRuntime) apply(ev nodestate.Event) nodestate.State {
	nr.mu.Lock()
	defer nr.mu.Unlock()
	if next, ok := nodestate.Apply(nr.state.Kind, ev); ok {
		nr.state = nodestate.State{Kind: next}
	}
	return nr.state
}

func (nr *nodeRuntime) snapshot() nodestate.State {
	nr.mu.Lock()
	defer nr.mu.Unlock()
	return nr.state
}

// Session is one running, independently mutable pipeline instance.
type Session struct {
	ID     string
	logger zerolog.Logger

	registry node.Registry
	profile  Profile

	mu      sync.RWMutex
	graph   *graph.Graph
	runtime map[string]*nodeRuntime

	mailbox          chan command
	events           *EventBus
	telemetryLimiter *rate.Limiter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession constructs a Session from a compiled Plan. The session is not
// started until Run is called.
func NewSession(id string, plan *graph.Plan, registry node.Registry, profile Profile, logger zerolog.Logger) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:               id,
		logger:           logger.With().Str("session_id", id).Logger(),
		registry:         registry,
		profile:          profile,
		graph:            plan.Graph,
		runtime:          make(map[string]*nodeRuntime),
		mailbox:          make(chan command, 64),
		events:           NewEventBus(256, id),
		telemetryLimiter: rate.NewLimiter(rate.Limit(telemetryRateLimit), telemetryRateLimit),
		done:             make(chan struct{}),
	}
	if err := s.materialize(plan.Graph); err != nil {
		return nil, err
	}
	return s, nil
}

// materialize instantiates every node and wires channels/distributors for
// every edge in g, replacing the session's current runtime wholesale. Used
// both at construction and after a successful batch mutation apply.
func (s *Session) materialize(g *graph.Graph) error {
	runtime := make(map[string]*nodeRuntime, len(g.Pipeline.Nodes))

	for _, label := range g.Pipeline.NodeOrder {
		inst := g.Pipeline.Nodes[label]
		b, ok := s.registry.Lookup(inst.Kind)
		if !ok {
			return fmt.Errorf("materialize: unknown kind %q for node %q", inst.Kind, label)
		}
		nodeLogger := s.logger.With().Str("node", label).Str("kind", inst.Kind).Logger()
		created, err := b.New(inst.Params, nodeLogger)
		if err != nil {
			return fmt.Errorf("materialize: create %q: %w", label, err)
		}
		nr := &nodeRuntime{
			label:  label,
			inst:   created,
			def:    b.Definition,
			inputs: make(map[string]*channel.Channel),
			outs:   make(map[string]*channel.Distributor),
			state:  nodestate.State{Kind: nodestate.Initializing},
			stats:  nodestate.NewStats(),
		}
		for _, out := range b.Definition.Outputs {
			nr.outs[out.Name] = channel.NewDistributor()
		}
		runtime[label] = nr
	}

	for _, edge := range g.Edges {
		dst := runtime[edge.ToLabel]
		src := runtime[edge.FromLabel]
		if dst == nil || src == nil {
			continue
		}
		ch, ok := dst.inputs[edge.ToPin]
		if !ok {
			ch = channel.New(s.profile.bufferFor(edge.ToLabel), edge.Mode.ChannelMode())
			dst.inputs[edge.ToPin] = ch
		}
		dist, ok := src.outs[edge.FromPin]
		if !ok {
			dist = channel.NewDistributor()
			src.outs[edge.FromPin] = dist
		}
		dist.Subscribe(edge.ToLabel+"."+edge.ToPin, ch)
	}

	s.mu.Lock()
	s.runtime = runtime
	s.mu.Unlock()
	return nil
}

// State returns the current state of every node, keyed by label.
func (s *Session) State() map[string]nodestate.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]nodestate.State, len(s.runtime))
	for label, nr := range s.runtime {
		out[label] = nr.snapshot()
	}
	return out
}

// Stats returns a snapshot of every node's packet counters.
func (s *Session) Stats() map[string]nodestate.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]nodestate.Snapshot, len(s.runtime))
	for label, nr := range s.runtime {
		out[label] = nr.stats.Snapshot()
	}
	return out
}

// Events returns the session's telemetry/state-change event bus.
func (s *Session) Events() *EventBus { return s.events }

// Pipeline returns the declarative pipeline the session's current graph
// compiled from, for callers that need node kinds/params rather than
// runtime state (e.g. the control surface's getpipeline action).
func (s *Session) Pipeline() graph.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Pipeline
}

// Run starts every node's task loop under one errgroup.Group and blocks
// until ctx is cancelled or Destroy is called. It is meant to be run in its
// own goroutine by the owning Engine.
//
// A single node's own processing failure never cancels its siblings:
// runNodeTask always returns nil to the group, recording failure in the
// node's own state instead. The group's shared context exists so the
// session's control loop and every node task share one cancellation
// signal, per the dynamic engine's task-group contract.
func (s *Session) Run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(gctx)
	s.cancel = cancel
	defer close(s.done)

	s.mu.RLock()
	runtimes := make([]*nodeRuntime, 0, len(s.runtime))
	for _, nr := range s.runtime {
		runtimes = append(runtimes, nr)
	}
	s.mu.RUnlock()

	for _, nr := range runtimes {
		nr.apply(nodestate.EvReady)
		nr.apply(nodestate.EvRun)
		nr := nr
		g.Go(func() error {
			s.runNodeTask(ctx, nr)
			return nil
		})
	}

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return
		case cmd := <-s.mailbox:
			cmd.execute(s)
		}
	}
}

// Submit enqueues a control-plane command (mutation, tune) for the
// session's single-writer loop to execute. It blocks until the command is
// accepted by the mailbox or ctx is cancelled, never until it completes.
func (s *Session) Submit(ctx context.Context, cmd command) error {
	select {
	case s.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("session %s: already stopped", s.ID)
	}
}

// Destroy cancels every node task, waits up to timeout for a clean drain,
// and calls Destroy on every node instance. It is idempotent.
func (s *Session) Destroy(timeout time.Duration) error {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	case <-time.After(timeout):
		s.logger.Warn().Dur("timeout", timeout).Msg("session drain timed out, forcing destroy")
	}

	s.mu.RLock()
	runtimes := make([]*nodeRuntime, 0, len(s.runtime))
	for _, nr := range s.runtime {
		runtimes = append(runtimes, nr)
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var firstErr error
	for _, nr := range runtimes {
		for _, dist := range nr.outs {
			dist.CloseAll()
		}
		if err := nr.inst.Destroy(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.events.Close()
	return firstErr
}

// emitContextFor builds the EmitContext a node uses while running.
func (s *Session) emitContextFor(nr *nodeRuntime) node.EmitContext {
	return node.EmitContext{
		Emit: func(pin string, p packet.Packet) error {
			s.mu.RLock()
			dist, ok := nr.outs[pin]
			s.mu.RUnlock()
			if !ok {
				return fmt.Errorf("node %q: unknown output pin %q", nr.label, pin)
			}
			if err := dist.Publish(p); err != nil {
				nr.stats.IncDiscarded()
				return err
			}
			nr.stats.IncSent()
			return nil
		},
		Telemetry: func(typeID string, data json.RawMessage, timestampUs *int64) {
			if !s.telemetryLimiter.Allow() {
				return
			}
			s.events.PublishNonBlocking(Event{
				Kind:        EventTelemetry,
				NodeLabel:   nr.label,
				TypeID:      typeID,
				Data:        data,
				TimestampUs: timestampUs,
			})
		},
	}
}

func (s *Session) runNodeTask(ctx context.Context, nr *nodeRuntime) {
	ectx := s.emitContextFor(nr)
	// Once the node stops, close its outputs so downstream nodes observe
	// end-of-stream.
	defer func() {
		for _, dist := range nr.outs {
			dist.CloseAll()
		}
	}()

	if len(nr.inputs) == 0 {
		// Source node: everything happens in Flush.
		if err := nr.inst.Flush(ctx, ectx); err != nil {
			s.failNode(nr, err)
			return
		}
		nr.apply(nodestate.EvStop)
		return
	}

	selector := newInputSelector(ctx, nr.inputs)
	for {
		pin, recv, done := selector.recv()
		if done {
			// ctx cancelled, or every input pin has reached end-of-stream.
			if err := nr.inst.Flush(context.Background(), ectx); err != nil {
				s.failNode(nr, err)
				return
			}
			nr.apply(nodestate.EvStop)
			return
		}
		if recv.err != nil {
			if recv.err == channel.EndOfStream || recv.err == channel.ErrClosed {
				selector.dropPin(pin)
				continue
			}
			s.failNode(nr, recv.err)
			return
		}
		nr.stats.IncReceived()
		if _, err := nr.inst.Process(ctx, pin, recv.packet, ectx); err != nil {
			nr.stats.IncErrored()
			nr.apply(nodestate.EvDegrade)
		}
	}
}

func (s *Session) failNode(nr *nodeRuntime, err error) {
	nr.mu.Lock()
	if next, ok := nodestate.Apply(nr.state.Kind, nodestate.EvFail); ok {
		nr.state = nodestate.State{Kind: next, Reason: err.Error()}
	}
	nr.mu.Unlock()
	s.logger.Error().Err(err).Str("node", nr.label).Msg("node task failed")
	s.events.PublishNonBlocking(Event{Kind: EventNodeStateChanged, NodeLabel: nr.label, State: nr.snapshot()})
}
