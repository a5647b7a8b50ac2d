// Package adminapi implements the narrow, engine-facing HTTP surface
// described by the external interfaces contract: createSession,
// destroySession, getPipeline, and process. It is not a full product HTTP
// API — no auth, no playback, no asset management — those remain named
// collaborators outside this module's scope, reached (if at all) by
// wrapping this surface, not by extending it.
package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/oneshotengine"
)

// Server wires the admin HTTP surface to a dynamic engine (sessions) and a
// oneshot engine (process). Either may be nil if that half of the surface
// isn't offered by a given deployment, in which case its routes 501.
type Server struct {
	Dynamic       *dynamicengine.Engine
	Oneshot       *oneshotengine.Engine
	Registry      node.Registry
	IsKindAllowed func(kind string) bool
	Logger        zerolog.Logger

	// RateLimitRPS bounds requests per second per client IP; 0 disables
	// rate limiting (e.g. in tests).
	RateLimitRPS int

	// OneshotDeadline bounds how long a single process request may run
	// before the oneshot engine cancels it. Zero means no deadline beyond
	// the request's own context.
	OneshotDeadline time.Duration
}

// Router builds the chi router for this surface, applying the canonical
// middleware ordering (recover, request id, access log, rate limit) before
// any route-specific logic.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer(s.Logger))
	r.Use(requestID)
	r.Use(accessLog(s.Logger))
	if s.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(s.RateLimitRPS, time.Second))
	}

	r.Post("/sessions", s.handleCreateSession)
	r.Delete("/sessions/{id}", s.handleDestroySession)
	r.Get("/sessions/{id}/pipeline", s.handleGetPipeline)
	r.Post("/oneshot", s.handleProcess)

	return r
}

// Handler wraps Router with OpenTelemetry HTTP instrumentation, so every
// request gets a span without the route tree itself depending on otelhttp.
// Tests exercising routes directly should use Router instead, which stays
// a plain chi.Router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router(), "adminapi")
}

func notConfigured(w http.ResponseWriter) {
	writeError(w, http.StatusNotImplemented, "this admin api surface was not configured with an engine for this route")
}
