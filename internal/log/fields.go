// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldNodeID        = "node_id"
	FieldPipelineID    = "pipeline_id"

	FieldEvent     = "event"
	FieldComponent = "component"

	FieldKind = "kind"
	FieldPin  = "pin"

	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
