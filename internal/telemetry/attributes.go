// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities shared across
// the engine, admin surface, and plugin host.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Pipeline/graph attributes
	PipelineModeKey  = "pipeline.mode"
	PipelineNodesKey = "pipeline.node_count"
	NodeLabelKey     = "node.label"
	NodeKindKey      = "node.kind"

	// Session/mutation attributes
	SessionIDKey  = "session.id"
	MutationOpKey = "mutation.op"

	// Plugin host attributes
	PluginKindKey    = "plugin.kind"
	PluginDialectKey = "plugin.dialect"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PipelineAttributes creates attributes describing a pipeline being
// compiled or run.
func PipelineAttributes(mode string, nodeCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PipelineModeKey, mode),
		attribute.Int(PipelineNodesKey, nodeCount),
	}
}

// SessionAttributes creates attributes identifying a dynamic engine session
// and, when op is non-empty, the mutation being applied to it.
func SessionAttributes(sessionID, op string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if op != "" {
		attrs = append(attrs, attribute.String(MutationOpKey, op))
	}
	return attrs
}

// PluginAttributes creates attributes describing a plugin load.
func PluginAttributes(kind, dialect string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PluginKindKey, kind),
		attribute.String(PluginDialectKey, dialect),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
