package dynamicengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/telemetry"
)

var tracer = telemetry.Tracer("streamkit/dynamicengine")

// Engine owns every live Session, admitting new ones under a configured
// concurrency ceiling, modeled on the teacher's orchestrator-held
// sessionRegistry + bounded-semaphore admission pattern.
type Engine struct {
	Registry           node.Registry
	Profile            Profile
	MaxConcurrent      int
	DestroyTimeout     time.Duration
	Logger             zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	admitSem chan struct{}

	sessionsGauge prometheus.Gauge
}

// NewEngine constructs an Engine. maxConcurrent <= 0 means unbounded.
func NewEngine(registry node.Registry, profile Profile, maxConcurrent int, destroyTimeout time.Duration, logger zerolog.Logger) *Engine {
	e := &Engine{
		Registry:       registry,
		Profile:        profile,
		MaxConcurrent:  maxConcurrent,
		DestroyTimeout: destroyTimeout,
		Logger:         logger,
		sessions:       make(map[string]*Session),
		sessionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamkit_dynamic_sessions_active",
			Help: "Number of currently running dynamic sessions.",
		}),
	}
	if maxConcurrent > 0 {
		e.admitSem = make(chan struct{}, maxConcurrent)
	}
	return e
}

// Collector exposes the engine's session-count gauge for Prometheus
// registration.
func (e *Engine) Collector() prometheus.Collector { return e.sessionsGauge }

// ErrSessionExists is returned by StartSession when id is already running.
var ErrSessionExists = fmt.Errorf("dynamicengine: session already exists")

// ErrAtCapacity is returned by StartSession when the engine is already at
// MaxConcurrent running sessions.
var ErrAtCapacity = fmt.Errorf("dynamicengine: engine at capacity")

// ErrSessionNotFound is returned by StopSession when id names no running
// session.
var ErrSessionNotFound = fmt.Errorf("dynamicengine: session not found")

// StartSession compiles pipeline against the engine's registry, admits a
// new Session under the concurrency ceiling, and starts its run loop in a
// new goroutine.
func (e *Engine) StartSession(ctx context.Context, id string, pipeline graph.Pipeline, isKindAllowed func(string) bool) (*Session, error) {
	e.mu.Lock()
	if _, exists := e.sessions[id]; exists {
		e.mu.Unlock()
		return nil, ErrSessionExists
	}
	if e.admitSem != nil {
		select {
		case e.admitSem <- struct{}{}:
		default:
			e.mu.Unlock()
			return nil, ErrAtCapacity
		}
	}
	e.mu.Unlock()

	ctx, span := tracer.Start(ctx, "dynamicengine.compile", trace.WithAttributes(
		telemetry.PipelineAttributes(string(pipeline.Mode), len(pipeline.Nodes))...))
	compiler := &graph.Compiler{Registry: e.Registry, IsKindAllowed: isKindAllowed}
	plan, errs := compiler.Compile(pipeline)
	if plan == nil {
		span.SetAttributes(attribute.Int("pipeline.validation_errors", len(errs)))
		span.End()
		e.release()
		return nil, &graph.CompileError{Errors: errs}
	}
	span.End()

	sess, err := NewSession(id, plan, e.Registry, e.Profile, e.Logger)
	if err != nil {
		e.release()
		return nil, err
	}

	// sess.ID may differ from id when the caller passed "" — NewSession
	// generates a fresh uuid in that case. Key the session map on the
	// generated ID so a later Session/StopSession lookup by it succeeds.
	e.mu.Lock()
	e.sessions[sess.ID] = sess
	e.mu.Unlock()
	e.sessionsGauge.Inc()

	go func() {
		sess.Run(ctx)
		e.mu.Lock()
		delete(e.sessions, sess.ID)
		e.mu.Unlock()
		e.sessionsGauge.Dec()
		e.release()
	}()

	return sess, nil
}

func (e *Engine) release() {
	if e.admitSem != nil {
		<-e.admitSem
	}
}

// Session looks up a running session by id.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	return s, ok
}

// Sessions returns the ids of every currently running session.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

// StopSession destroys a running session and waits for its task group to
// drain, up to the engine's DestroyTimeout.
func (e *Engine) StopSession(id string) error {
	e.mu.Lock()
	sess, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return sess.Destroy(e.DestroyTimeout)
}

// Shutdown destroys every currently running session, waiting for each to
// drain up to the engine's DestroyTimeout, so a daemon can bring the engine
// down cleanly instead of abandoning live task goroutines. It stops at the
// first session that fails to destroy and reports that error; sessions
// already destroyed by then stay destroyed.
func (e *Engine) Shutdown(ctx context.Context) error {
	for _, id := range e.Sessions() {
		if err := e.StopSession(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("dynamicengine: shutdown: stop session %q: %w", id, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
