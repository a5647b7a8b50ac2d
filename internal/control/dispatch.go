package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamkit/streamkit/internal/dynamicengine"
	"github.com/streamkit/streamkit/internal/eventlog"
	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/metrics"
	"github.com/streamkit/streamkit/internal/node"
)

// ErrSessionNotFound is returned when a request addresses a session id the
// engine has no record of. Alias of dynamicengine.ErrSessionNotFound so
// callers can classify errors against one sentinel regardless of whether
// they came through the control envelope or straight from the engine.
var ErrSessionNotFound = dynamicengine.ErrSessionNotFound

// Dispatcher routes control-protocol requests to a dynamicengine.Engine,
// applying a caller-supplied permission predicate to every action that
// would add node kinds (createsession, and any batch with an add_node) and
// to the kinds getpermissions reports; listnodes reports every registered
// kind. It holds no network transport of its own —
// a websocket or other framing layer decodes a Request, calls Handle, and
// encodes the Response.
type Dispatcher struct {
	Engine        *dynamicengine.Engine
	Registry      node.Registry
	IsKindAllowed func(kind string) bool

	// EventLog, if set, receives every event a session publishes so a
	// reconnecting client can replay recent history before following the
	// live stream. Nil disables replay entirely; the live event bus is
	// unaffected either way.
	EventLog *eventlog.Log
}

// Handle executes one Request and returns its Response. It never panics on
// a malformed payload or missing session: every failure is reported as an
// Action "error" Response, never a Go error return, so a transport layer
// can always just encode the result.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	done := metrics.TimeControlRequest(string(req.Action))
	resp := d.dispatch(ctx, req)
	outcome := "ok"
	if resp.Action == "error" {
		outcome = "error"
	}
	done(outcome)
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Response {
	switch req.Action {
	case ActionCreateSession:
		return d.createSession(ctx, req)
	case ActionDestroySession:
		return d.destroySession(req)
	case ActionListSessions:
		return d.listSessions(req)
	case ActionListNodes:
		return d.listNodes(req)
	case ActionGetPipeline:
		return d.getPipeline(req)
	case ActionAddNode:
		return d.addNode(ctx, req)
	case ActionRemoveNode:
		return d.removeNode(ctx, req)
	case ActionConnect:
		return d.connect(ctx, req)
	case ActionDisconnect:
		return d.disconnect(ctx, req)
	case ActionTuneNode:
		return d.tuneNode(ctx, req, true)
	case ActionTuneNodeAsync:
		return d.tuneNode(ctx, req, false)
	case ActionValidateBatch:
		return d.validateBatch(req)
	case ActionApplyBatch:
		return d.applyBatch(ctx, req)
	case ActionGetPermissions:
		return d.getPermissions(req)
	default:
		return errorResponse(req.CorrelationID, fmt.Errorf("control: unknown action %q", req.Action))
	}
}

func (d *Dispatcher) session(id string) (*dynamicengine.Session, error) {
	sess, ok := d.Engine.Session(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dynamicengine.ErrSessionNotFound, id)
	}
	return sess, nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("control: missing payload")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("control: decode payload: %w", err)
	}
	return v, nil
}

func (d *Dispatcher) createSession(ctx context.Context, req Request) Response {
	payload, err := decode[CreateSessionPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	pipeline, err := graph.ParseYAML([]byte(payload.Pipeline))
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.Engine.StartSession(ctx, payload.SessionID, pipeline, d.IsKindAllowed)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	if d.EventLog != nil {
		recordToLog(d.EventLog, sess, sess.ID)
	}
	return okResponse(req.CorrelationID, "sessioncreated", SessionCreatedPayload{SessionID: sess.ID})
}

func (d *Dispatcher) destroySession(req Request) Response {
	payload, err := decode[SessionIDPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	if err := d.Engine.StopSession(payload.SessionID); err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	if d.EventLog != nil {
		_ = d.EventLog.Forget(payload.SessionID)
	}
	return okResponse(req.CorrelationID, "success", SuccessPayload{Applied: true})
}

func (d *Dispatcher) listSessions(req Request) Response {
	return okResponse(req.CorrelationID, "sessions", SessionListPayload{SessionIDs: d.Engine.Sessions()})
}

func (d *Dispatcher) listNodes(req Request) Response {
	defs := d.Registry.Definitions()
	kinds := make([]NodeKindInfo, 0, len(defs))
	for _, def := range defs {
		kinds = append(kinds, nodeKindInfo(def))
	}
	return okResponse(req.CorrelationID, "nodes", NodeListPayload{Kinds: kinds})
}

func (d *Dispatcher) getPipeline(req Request) Response {
	payload, err := decode[SessionIDPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	pipeline := sess.Pipeline()
	states := sess.State()
	stats := sess.Stats()

	nodes := make([]NodeInfo, 0, len(pipeline.NodeOrder))
	for _, label := range pipeline.NodeOrder {
		inst := pipeline.Nodes[label]
		nodes = append(nodes, NodeInfo{
			Label:  label,
			Kind:   inst.Kind,
			Params: inst.Params,
			State:  states[label],
			Stats:  stats[label],
		})
	}
	return okResponse(req.CorrelationID, "pipeline", PipelinePayload{
		SessionID:   sess.ID,
		Nodes:       nodes,
		Connections: pipeline.Connections,
	})
}

func (d *Dispatcher) addNode(ctx context.Context, req Request) Response {
	payload, err := decode[AddNodePayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	mutation := dynamicengine.Mutation{Op: "add_node", Label: payload.Label, Kind: payload.Kind, Params: payload.Params}
	return d.runBatch(ctx, req, sess, []dynamicengine.Mutation{mutation}, "batchapplied")
}

func (d *Dispatcher) removeNode(ctx context.Context, req Request) Response {
	payload, err := decode[RemoveNodePayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	mutation := dynamicengine.Mutation{Op: "remove_node", NodeLabel: payload.Label}
	return d.runBatch(ctx, req, sess, []dynamicengine.Mutation{mutation}, "batchapplied")
}

func (d *Dispatcher) connect(ctx context.Context, req Request) Response {
	payload, err := decode[ConnectionPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	mutation := dynamicengine.Mutation{Op: "connect", Connection: payload.Connection}
	return d.runBatch(ctx, req, sess, []dynamicengine.Mutation{mutation}, "batchapplied")
}

func (d *Dispatcher) disconnect(ctx context.Context, req Request) Response {
	payload, err := decode[ConnectionPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	mutation := dynamicengine.Mutation{Op: "disconnect", Connection: payload.Connection}
	return d.runBatch(ctx, req, sess, []dynamicengine.Mutation{mutation}, "batchapplied")
}

// tuneNode handles both tunenode (wait, action name "batchapplied") and
// tunenodeasync (fire-and-forget, action name "success") — the mutation
// submitted to the session is identical either way; only whether the
// caller waits for the single-writer loop to actually run it differs.
func (d *Dispatcher) tuneNode(ctx context.Context, req Request, wait bool) Response {
	payload, err := decode[TuneNodePayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	mutation := dynamicengine.Mutation{Op: "tune", NodeLabel: payload.Label, TuneParams: payload.Params}
	if !wait {
		if err := sess.Submit(ctx, dynamicengine.BatchRequest{Mutations: []dynamicengine.Mutation{mutation}}); err != nil {
			return errorResponse(req.CorrelationID, err)
		}
		return okResponse(req.CorrelationID, "success", SuccessPayload{Applied: true})
	}
	return d.runBatch(ctx, req, sess, []dynamicengine.Mutation{mutation}, "batchapplied")
}

func (d *Dispatcher) validateBatch(req Request) Response {
	payload, err := decode[BatchPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	res := sess.ValidateBatch(dynamicengine.BatchRequest{Mutations: payload.Mutations})
	return okResponse(req.CorrelationID, "validationresult", batchResultPayload(res))
}

func (d *Dispatcher) applyBatch(ctx context.Context, req Request) Response {
	payload, err := decode[BatchPayload](req.Payload)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	sess, err := d.session(payload.SessionID)
	if err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	return d.runBatch(ctx, req, sess, payload.Mutations, "batchapplied")
}

// runBatch submits mutations to sess's single-writer loop and waits for the
// result, translating a compile-time rejection or a submit/wait-time
// context error into a Response without ever returning a bare Go error to
// the caller.
func (d *Dispatcher) runBatch(ctx context.Context, req Request, sess *dynamicengine.Session, mutations []dynamicengine.Mutation, successAction string) Response {
	for _, m := range mutations {
		if m.Op == "add_node" && d.IsKindAllowed != nil && !d.IsKindAllowed(m.Kind) {
			return okResponse(req.CorrelationID, successAction, BatchResultPayload{Errors: []graph.ValidationError{{
				Severity: graph.SeverityError, Kind: "permission_denied",
				Message: fmt.Sprintf("node %q: kind %q is not allowed", m.Label, m.Kind), Node: m.Label,
			}}})
		}
	}
	resultChan := make(chan dynamicengine.BatchResult, 1)
	batch := dynamicengine.BatchRequest{RequestID: req.CorrelationID, Mutations: mutations, ResultChan: resultChan}
	if err := sess.Submit(ctx, batch); err != nil {
		return errorResponse(req.CorrelationID, err)
	}
	select {
	case res := <-resultChan:
		return okResponse(req.CorrelationID, successAction, batchResultPayload(res))
	case <-ctx.Done():
		return errorResponse(req.CorrelationID, ctx.Err())
	}
}

func (d *Dispatcher) getPermissions(req Request) Response {
	defs := d.Registry.Definitions()
	allowed := make([]string, 0, len(defs))
	for _, def := range defs {
		if d.IsKindAllowed == nil || d.IsKindAllowed(def.Kind) {
			allowed = append(allowed, def.Kind)
		}
	}
	return okResponse(req.CorrelationID, "permissions", GetPermissionsPayload{AllowedKinds: allowed})
}
