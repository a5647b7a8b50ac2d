package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// yamlPipeline mirrors the authoring syntax from the external interfaces
// contract: `mode`, `nodes: {label: {kind, params?, needs?, ui?}}` or the
// `steps:` sequential sugar for dynamic-only authoring.
type yamlPipeline struct {
	Mode  Mode                 `yaml:"mode"`
	Nodes map[string]yamlNode  `yaml:"nodes"`
	Steps []yamlStep           `yaml:"steps"`
}

type yamlNode struct {
	Kind   string          `yaml:"kind"`
	Params yaml.Node       `yaml:"params"`
	Needs  yamlNeeds       `yaml:"needs"`
	UI     *yamlPosition   `yaml:"ui"`
}

type yamlStep struct {
	Kind   string    `yaml:"kind"`
	Params yaml.Node `yaml:"params"`
}

type yamlPosition struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// yamlNeed is a single `needs` reference: a bare node label (reliable by
// default) or an object naming an explicit mode.
type yamlNeed struct {
	Node string
	Mode ConnMode
}

// yamlNeeds decodes the `needs` field's three accepted shapes: a string, an
// object {node, mode}, or an array mixing either.
type yamlNeeds struct {
	entries []yamlNeed
}

func (n *yamlNeeds) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "" {
			n.entries = append(n.entries, yamlNeed{Node: s, Mode: ConnReliable})
		}
		return nil
	case yaml.MappingNode:
		need, err := decodeNeedObject(value)
		if err != nil {
			return err
		}
		n.entries = append(n.entries, need)
		return nil
	case yaml.SequenceNode:
		for _, item := range value.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				var s string
				if err := item.Decode(&s); err != nil {
					return err
				}
				n.entries = append(n.entries, yamlNeed{Node: s, Mode: ConnReliable})
			case yaml.MappingNode:
				need, err := decodeNeedObject(item)
				if err != nil {
					return err
				}
				n.entries = append(n.entries, need)
			default:
				return fmt.Errorf("needs: unsupported entry kind %v", item.Kind)
			}
		}
		return nil
	default:
		return fmt.Errorf("needs: unsupported yaml kind %v", value.Kind)
	}
}

func decodeNeedObject(value *yaml.Node) (yamlNeed, error) {
	var raw struct {
		Node string `yaml:"node"`
		Mode string `yaml:"mode"`
	}
	if err := value.Decode(&raw); err != nil {
		return yamlNeed{}, err
	}
	mode := ConnReliable
	if raw.Mode == string(ConnBestEffort) {
		mode = ConnBestEffort
	}
	return yamlNeed{Node: raw.Node, Mode: mode}, nil
}

// ParseYAML decodes a pipeline description and rewrites `needs`/`steps`
// sugar into an explicit Pipeline ready for Compile. Rewriting rules, per
// the graph compiler contract:
//   - `steps` is sequential sugar: step i is given the synthetic label
//     "step_i" and a `needs` on step i-1's label.
//   - a bare `needs` reference uses the source's default output pin (its
//     first declared output) against the target's input pin at the same
//     positional index among that target's needs entries.
//
// Positional-index / dynamic-pin synthesis against the registry happens in
// Compile step 3, not here: ParseYAML only normalizes syntax sugar into
// Connections carrying pin name "" when the default/positional pin still
// needs registry-driven resolution.
func ParseYAML(data []byte) (Pipeline, error) {
	var raw yamlPipeline
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Pipeline{}, fmt.Errorf("parse pipeline yaml: %w", err)
	}

	if len(raw.Steps) > 0 {
		if len(raw.Nodes) > 0 {
			return Pipeline{}, fmt.Errorf("pipeline: steps and nodes are mutually exclusive")
		}
		raw.Nodes = stepsToNodes(raw.Steps)
	}

	p := Pipeline{
		Mode:  raw.Mode,
		Nodes: make(map[string]NodeInstance, len(raw.Nodes)),
	}

	labels := make([]string, 0, len(raw.Nodes))
	for label := range raw.Nodes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	p.NodeOrder = labels

	for _, label := range labels {
		n := raw.Nodes[label]
		var pos *Position
		if n.UI != nil {
			pos = &Position{X: n.UI.X, Y: n.UI.Y}
		}
		params, err := yamlNodeToJSON(n.Params)
		if err != nil {
			return Pipeline{}, fmt.Errorf("node %q: %w", label, err)
		}
		p.Nodes[label] = NodeInstance{Label: label, Kind: n.Kind, Params: params, Position: pos}

		for _, need := range n.Needs.entries {
			p.Connections = append(p.Connections, Connection{
				FromLabel: need.Node,
				FromPin:   "", // resolved in Compile step 3 against the registry
				ToLabel:   label,
				ToPin:     "",
				Mode:      need.Mode,
			})
		}
	}

	return p, nil
}

func stepsToNodes(steps []yamlStep) map[string]yamlNode {
	nodes := make(map[string]yamlNode, len(steps))
	var prevLabel string
	for i, s := range steps {
		label := fmt.Sprintf("step_%d", i)
		n := yamlNode{Kind: s.Kind, Params: s.Params}
		if i > 0 {
			n.Needs = yamlNeeds{entries: []yamlNeed{{Node: prevLabel, Mode: ConnReliable}}}
		}
		nodes[label] = n
		prevLabel = label
	}
	return nodes
}

func yamlNodeToJSON(n yaml.Node) (json.RawMessage, error) {
	if n.Kind == 0 {
		return json.RawMessage("{}"), nil
	}
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
