package graph

import (
	"fmt"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

// Severity classifies a ValidationError.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// ValidationError is returned by Compile; validation never has side
// effects, so a non-empty error list always leaves the caller's prior
// state untouched.
type ValidationError struct {
	Severity   Severity
	Kind       string // "unknown_kind", "cycle", "type_mismatch", ...
	Message    string
	Node       string
	Connection *Connection
}

func (e ValidationError) Error() string { return e.Message }

// CompileError wraps a failed Compile's validation errors as a single
// error value, for callers that need an `error` rather than the raw slice
// (e.g. the dynamic/oneshot engines' admission path).
type CompileError struct {
	Errors []ValidationError
}

func (e *CompileError) Error() string {
	if len(e.Errors) == 0 {
		return "graph: compile failed"
	}
	return fmt.Sprintf("graph: compile failed: %s (and %d more)", e.Errors[0].Message, len(e.Errors)-1)
}

// Plan is the executable result of a successful Compile: the resolved
// Graph plus its stable topological order.
type Plan struct {
	Graph *Graph
	Order []string
}

// Compiler validates a Pipeline against a node registry and produces an
// executable Plan, per the graph model & compiler contract's eight ordered
// validation steps.
type Compiler struct {
	Registry node.Registry
	// IsKindAllowed externalizes the permission/allowlist check (step 7).
	// A nil predicate allows every kind.
	IsKindAllowed func(kind string) bool
}

// Compile runs the full validation pipeline and, if there are no
// SeverityError entries, returns an executable Plan. Warnings are always
// returned alongside a successful Plan.
func (c *Compiler) Compile(p Pipeline) (*Plan, []ValidationError) {
	var errs []ValidationError

	// Step 1 + 2: kinds exist, labels unique (map keys are already unique by
	// construction; this catches unknown kinds).
	for _, label := range p.NodeOrder {
		n := p.Nodes[label]
		if _, ok := c.Registry.Lookup(n.Kind); !ok {
			errs = append(errs, ValidationError{
				Severity: SeverityError, Kind: "unknown_kind",
				Message: fmt.Sprintf("node %q: unknown kind %q", label, n.Kind),
				Node:    label,
			})
		}
	}
	if hasError(errs) {
		return nil, errs
	}

	// Step 3: rewrite needs (placeholder pins from ParseYAML) into concrete
	// connections, synthesizing Dynamic pins as needed.
	resolved, rewriteErrs := c.resolveNeedsPins(p)
	errs = append(errs, rewriteErrs...)
	if hasError(errs) {
		return nil, errs
	}
	p.Connections = resolved

	// Step 4: endpoints/pins exist, cardinality One is not violated.
	errs = append(errs, c.checkEndpoints(p)...)
	if hasError(errs) {
		return nil, errs
	}

	// Step 5: cycle check, projecting out bidirectional nodes.
	errs = append(errs, c.checkCycles(p)...)
	if hasError(errs) {
		return nil, errs
	}

	// Step 6: type compatibility, including passthrough + narrowing.
	edges, typeErrs := c.resolveEdgeTypes(p)
	errs = append(errs, typeErrs...)
	if hasError(errs) {
		return nil, errs
	}

	// Step 7: permission/allowlist.
	if c.IsKindAllowed != nil {
		for _, label := range p.NodeOrder {
			n := p.Nodes[label]
			if !c.IsKindAllowed(n.Kind) {
				errs = append(errs, ValidationError{
					Severity: SeverityError, Kind: "permission_denied",
					Message: fmt.Sprintf("node %q: kind %q is not allowed", label, n.Kind),
					Node:    label,
				})
			}
		}
	}
	if hasError(errs) {
		return nil, errs
	}

	// Step 8: mode/category sanity.
	errs = append(errs, c.checkModeSanity(p)...)
	if hasError(errs) {
		return nil, errs
	}

	// Warnings: disconnected sources/sinks.
	errs = append(errs, c.checkDisconnected(p)...)

	// Order over the same projection the cycle check uses: connections
	// touching a bidirectional node are left out.
	projected := p
	projected.Connections = make([]Connection, 0, len(p.Connections))
	for _, conn := range p.Connections {
		from, _ := c.Registry.Lookup(p.Nodes[conn.FromLabel].Kind)
		to, _ := c.Registry.Lookup(p.Nodes[conn.ToLabel].Kind)
		if !from.Definition.Bidirectional && !to.Definition.Bidirectional {
			projected.Connections = append(projected.Connections, conn)
		}
	}
	order, _ := TopoSort(projected)
	g := &Graph{Pipeline: p, Edges: edges}
	return &Plan{Graph: g, Order: order}, errs
}

func hasError(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// dynKey identifies a (label, prefix) Dynamic input template; the counters
// map keyed by it tracks how many concrete pins have been synthesized for it.
type dynKey struct{ label, prefix string }

func (c *Compiler) resolveNeedsPins(p Pipeline) ([]Connection, []ValidationError) {
	var errs []ValidationError
	out := make([]Connection, 0, len(p.Connections))
	counters := map[dynKey]int{}
	// Track positional index per target label among *its own* needs-derived
	// connections (those with empty ToPin from ParseYAML).
	posIndex := map[string]int{}

	for _, conn := range p.Connections {
		if conn.FromPin != "" && conn.ToPin != "" {
			out = append(out, conn) // already explicit
			continue
		}

		srcInst, ok := p.Nodes[conn.FromLabel]
		if !ok {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "missing_node",
				Message: fmt.Sprintf("needs: source node %q does not exist", conn.FromLabel)})
			continue
		}
		srcBuiltin, ok := c.Registry.Lookup(srcInst.Kind)
		if !ok {
			continue // already reported in step 1
		}
		outPin, ok := srcBuiltin.Definition.DefaultOutputPin()
		if !ok {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "missing_pin",
				Message: fmt.Sprintf("needs: source node %q has no output pin", conn.FromLabel)})
			continue
		}

		tgtInst, ok := p.Nodes[conn.ToLabel]
		if !ok {
			continue
		}
		tgtBuiltin, ok := c.Registry.Lookup(tgtInst.Kind)
		if !ok {
			continue
		}

		idx := posIndex[conn.ToLabel]
		posIndex[conn.ToLabel] = idx + 1

		toPin, err := resolveTargetInputPin(tgtBuiltin.Definition, conn.ToLabel, idx, counters)
		if err != "" {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "missing_pin", Message: err, Node: conn.ToLabel})
			continue
		}

		conn.FromPin = outPin.Name
		conn.ToPin = toPin
		out = append(out, conn)
	}
	return out, errs
}

func resolveTargetInputPin(def node.Definition, label string, idx int, counters map[dynKey]int) (string, string) {
	if idx < len(def.Inputs) {
		in := def.Inputs[idx]
		if in.Cardinality == node.CardinalityDynamic {
			key := dynKey{label, in.Prefix}
			n := counters[key]
			counters[key] = n + 1
			return node.DynamicPinName(in.Prefix, n), ""
		}
		return in.Name, ""
	}
	// Positional index past the declared list: only valid if the last input
	// is a Dynamic template absorbing overflow connections.
	if len(def.Inputs) > 0 {
		last := def.Inputs[len(def.Inputs)-1]
		if last.Cardinality == node.CardinalityDynamic {
			key := dynKey{label, last.Prefix}
			n := counters[key]
			counters[key] = n + 1
			return node.DynamicPinName(last.Prefix, n), ""
		}
	}
	return "", fmt.Sprintf("node %q: no input pin at position %d", label, idx)
}

func (c *Compiler) checkEndpoints(p Pipeline) []ValidationError {
	var errs []ValidationError
	oneInputUse := map[string]int{} // key: label+"."+pin

	for i, conn := range p.Connections {
		conn := conn
		src, ok := p.Nodes[conn.FromLabel]
		if !ok {
			errs = append(errs, endpointErr(conn, fmt.Sprintf("connection %d: source node %q does not exist", i, conn.FromLabel)))
			continue
		}
		dst, ok := p.Nodes[conn.ToLabel]
		if !ok {
			errs = append(errs, endpointErr(conn, fmt.Sprintf("connection %d: target node %q does not exist", i, conn.ToLabel)))
			continue
		}
		srcBuiltin, ok := c.Registry.Lookup(src.Kind)
		if !ok {
			continue
		}
		dstBuiltin, ok := c.Registry.Lookup(dst.Kind)
		if !ok {
			continue
		}
		if _, ok := srcBuiltin.Definition.OutputPin(conn.FromPin); !ok {
			errs = append(errs, endpointErr(conn, fmt.Sprintf("connection %d: %q has no output pin %q", i, conn.FromLabel, conn.FromPin)))
		}
		in, ok := dstBuiltin.Definition.InputPin(basePinName(conn.ToPin, dstBuiltin.Definition))
		if !ok {
			errs = append(errs, endpointErr(conn, fmt.Sprintf("connection %d: %q has no input pin %q", i, conn.ToLabel, conn.ToPin)))
			continue
		}
		// A bidirectional node's own feedback edge back into itself doesn't
		// count against CardinalityOne: the pin still has exactly one
		// external producer, the self-loop is the node feeding its own
		// next cycle, not a second peer.
		selfLoop := dstBuiltin.Definition.Bidirectional && conn.FromLabel == conn.ToLabel
		if in.Cardinality == node.CardinalityOne && !selfLoop {
			key := conn.ToLabel + "." + conn.ToPin
			oneInputUse[key]++
			if oneInputUse[key] > 1 {
				errs = append(errs, endpointErr(conn, fmt.Sprintf("connection %d: input pin %q.%q accepts only one connection", i, conn.ToLabel, conn.ToPin)))
			}
		}
	}
	return errs
}

// basePinName maps a synthesized Dynamic pin name (e.g. "in_3") back to its
// template's declared name ("in") for pin-definition lookup purposes.
func basePinName(pinName string, def node.Definition) string {
	for _, in := range def.Inputs {
		if in.Name == pinName {
			return pinName
		}
		if in.Cardinality == node.CardinalityDynamic && len(pinName) > len(in.Prefix)+1 && pinName[:len(in.Prefix)+1] == in.Prefix+"_" {
			return in.Name
		}
	}
	return pinName
}

func endpointErr(conn Connection, msg string) ValidationError {
	c := conn
	return ValidationError{Severity: SeverityError, Kind: "missing_endpoint", Message: msg, Connection: &c}
}

func (c *Compiler) checkCycles(p Pipeline) []ValidationError {
	// Project out bidirectional nodes: edges touching one are excluded from
	// the cycle check entirely (the node itself is removed from the
	// projected graph).
	bidirectional := map[string]bool{}
	for label, inst := range p.Nodes {
		if b, ok := c.Registry.Lookup(inst.Kind); ok && b.Definition.Bidirectional {
			bidirectional[label] = true
		}
	}

	adj := map[string][]string{}
	for _, conn := range p.Connections {
		if bidirectional[conn.FromLabel] || bidirectional[conn.ToLabel] {
			continue
		}
		adj[conn.FromLabel] = append(adj[conn.FromLabel], conn.ToLabel)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var cycleEdge *Connection

	var visit func(label string) bool
	visit = func(label string) bool {
		color[label] = gray
		for _, next := range adj[label] {
			switch color[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				for _, conn := range p.Connections {
					if conn.FromLabel == label && conn.ToLabel == next {
						cc := conn
						cycleEdge = &cc
						break
					}
				}
				return true
			}
		}
		color[label] = black
		return false
	}

	for _, label := range p.NodeOrder {
		if color[label] == white {
			if visit(label) {
				msg := "cycle detected in graph"
				if cycleEdge != nil {
					msg = fmt.Sprintf("cycle detected involving connection %s.%s -> %s.%s", cycleEdge.FromLabel, cycleEdge.FromPin, cycleEdge.ToLabel, cycleEdge.ToPin)
				}
				return []ValidationError{{Severity: SeverityError, Kind: "cycle", Message: msg, Connection: cycleEdge}}
			}
		}
	}
	return nil
}

func (c *Compiler) resolveEdgeTypes(p Pipeline) ([]Edge, []ValidationError) {
	var errs []ValidationError
	edges := make([]Edge, 0, len(p.Connections))

	for _, conn := range p.Connections {
		produced, err := c.resolveProducerType(p, conn.FromLabel, conn.FromPin, map[string]bool{})
		if err != "" {
			cc := conn
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "type_resolution", Message: err, Connection: &cc})
			continue
		}

		dstInst := p.Nodes[conn.ToLabel]
		dstBuiltin, _ := c.Registry.Lookup(dstInst.Kind)
		in, ok := dstBuiltin.Definition.InputPin(basePinName(conn.ToPin, dstBuiltin.Definition))
		if !ok {
			continue // already reported by checkEndpoints
		}
		if !packet.IsCompatibleWithAny(produced, in.Accepts) {
			cc := conn
			errs = append(errs, ValidationError{
				Severity: SeverityError, Kind: "type_mismatch",
				Message: fmt.Sprintf("output type %s not compatible with accepted types on %s.%s", produced.Variant, conn.ToLabel, conn.ToPin),
				Connection: &cc,
			})
			continue
		}
		edges = append(edges, Edge{Connection: conn, ResolvedType: produced})
	}
	return edges, errs
}

// resolveProducerType resolves the type an output pin produces, following
// Passthrough chains upstream (with cycle detection) and applying
// parameter-dependent narrowing, per the packet/type model contract.
func (c *Compiler) resolveProducerType(p Pipeline, label, pin string, visiting map[string]bool) (packet.PacketType, string) {
	inst, ok := p.Nodes[label]
	if !ok {
		return packet.AnyType, ""
	}
	builtin, ok := c.Registry.Lookup(inst.Kind)
	if !ok {
		return packet.AnyType, ""
	}
	out, ok := builtin.Definition.OutputPin(pin)
	if !ok {
		return packet.AnyType, ""
	}

	declared := out.Produces
	if builtin.Definition.Narrow != nil {
		declared = builtin.Definition.Narrow(inst.Params, declared)
	}

	if declared.Variant != packet.VariantPassthrough {
		return declared, ""
	}

	// Passthrough: walk upstream through this node's single input pin.
	if visiting[label] {
		return packet.AnyType, "" // cycle: resolves to Any, not an error
	}
	visiting[label] = true

	if len(builtin.Definition.Inputs) != 1 {
		return packet.AnyType, "" // zero or ambiguous inputs: Any
	}
	inPin := builtin.Definition.Inputs[0].Name

	var upstreamLabel, upstreamPin string
	found := false
	for _, conn := range p.Connections {
		if conn.ToLabel == label && conn.ToPin == inPin {
			upstreamLabel, upstreamPin = conn.FromLabel, conn.FromPin
			found = true
			break
		}
	}
	if !found {
		return packet.AnyType, "" // zero-input producer: Any
	}
	return c.resolveProducerType(p, upstreamLabel, upstreamPin, visiting)
}

func (c *Compiler) checkModeSanity(p Pipeline) []ValidationError {
	var errs []ValidationError
	hasHTTPInput, hasFileReader, hasHTTPOutput := false, false, false

	for _, label := range p.NodeOrder {
		inst := p.Nodes[label]
		b, ok := c.Registry.Lookup(inst.Kind)
		if !ok {
			continue
		}
		def := b.Definition
		if p.Mode == ModeOneshot && def.HasCategory("dynamic") {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "mode_mismatch",
				Message: fmt.Sprintf("node %q (kind %q) is dynamic-only but pipeline mode is oneshot", label, inst.Kind), Node: label})
		}
		if p.Mode == ModeDynamic && def.HasCategory("oneshot") {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "mode_mismatch",
				Message: fmt.Sprintf("node %q (kind %q) is oneshot-only but pipeline mode is dynamic", label, inst.Kind), Node: label})
		}
		if inst.Kind == "http_input" {
			hasHTTPInput = true
		}
		if inst.Kind == "file_reader" {
			hasFileReader = true
		}
		if inst.Kind == "http_output" {
			hasHTTPOutput = true
		}
	}

	if p.Mode == ModeOneshot {
		if !hasHTTPInput && !hasFileReader {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "mode_mismatch",
				Message: "oneshot pipeline must contain an http_input or file_reader source"})
		}
		if !hasHTTPOutput {
			errs = append(errs, ValidationError{Severity: SeverityError, Kind: "mode_mismatch",
				Message: "oneshot pipeline must contain an http_output sink"})
		}
	}
	return errs
}

func (c *Compiler) checkDisconnected(p Pipeline) []ValidationError {
	var errs []ValidationError
	connected := map[string]bool{}
	for _, conn := range p.Connections {
		connected[conn.FromLabel] = true
		connected[conn.ToLabel] = true
	}
	for _, label := range p.NodeOrder {
		inst := p.Nodes[label]
		b, ok := c.Registry.Lookup(inst.Kind)
		if !ok {
			continue
		}
		role := node.Classify(b.Definition)
		if (role == node.RoleSource || role == node.RoleSink) && !connected[label] {
			errs = append(errs, ValidationError{Severity: SeverityWarning, Kind: "disconnected",
				Message: fmt.Sprintf("node %q (%s) has no connections", label, role), Node: label})
		}
	}
	return errs
}
