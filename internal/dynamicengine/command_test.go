package dynamicengine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/graph"
	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/node/builtin"
)

func baseGraphForMutation() *graph.Graph {
	return &graph.Graph{
		Pipeline: graph.Pipeline{
			Mode: graph.ModeDynamic,
			Nodes: map[string]graph.NodeInstance{
				"src": {Label: "src", Kind: "file_reader"},
				"snk": {Label: "snk", Kind: "http_output"},
			},
			NodeOrder:   []string{"src", "snk"},
			Connections: []graph.Connection{{FromLabel: "src", FromPin: "out", ToLabel: "snk", ToPin: "in"}},
		},
	}
}

func TestApplyMutationAddNode(t *testing.T) {
	g := baseGraphForMutation()
	err := applyMutation(g, Mutation{Op: "add_node", Label: "mid", Kind: "identity"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Pipeline.Nodes["mid"]; !ok {
		t.Fatal("expected node mid to be added")
	}
	if g.Pipeline.NodeOrder[len(g.Pipeline.NodeOrder)-1] != "mid" {
		t.Fatalf("expected mid appended to NodeOrder, got %v", g.Pipeline.NodeOrder)
	}
}

func TestApplyMutationAddNodeRejectsDuplicateLabel(t *testing.T) {
	g := baseGraphForMutation()
	err := applyMutation(g, Mutation{Op: "add_node", Label: "src", Kind: "identity"})
	if err == nil {
		t.Fatal("expected an error for a duplicate label")
	}
}

func TestApplyMutationRemoveNodeDropsItsConnections(t *testing.T) {
	g := baseGraphForMutation()
	err := applyMutation(g, Mutation{Op: "remove_node", NodeLabel: "snk"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Pipeline.Nodes["snk"]; ok {
		t.Fatal("expected snk to be removed")
	}
	for _, c := range g.Pipeline.Connections {
		if c.ToLabel == "snk" || c.FromLabel == "snk" {
			t.Fatalf("expected connections touching snk to be dropped, found %+v", c)
		}
	}
	for _, label := range g.Pipeline.NodeOrder {
		if label == "snk" {
			t.Fatal("expected snk removed from NodeOrder")
		}
	}
}

func TestApplyMutationRemoveNodeRejectsUnknownLabel(t *testing.T) {
	g := baseGraphForMutation()
	if err := applyMutation(g, Mutation{Op: "remove_node", NodeLabel: "ghost"}); err == nil {
		t.Fatal("expected an error removing an unknown label")
	}
}

func TestApplyMutationConnectAndDisconnect(t *testing.T) {
	g := baseGraphForMutation()
	_ = applyMutation(g, Mutation{Op: "add_node", Label: "mid", Kind: "identity"})
	conn := graph.Connection{FromLabel: "src", FromPin: "out", ToLabel: "mid", ToPin: "in"}
	if err := applyMutation(g, Mutation{Op: "connect", Connection: conn}); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range g.Pipeline.Connections {
		if c == conn {
			found = true
		}
	}
	if !found {
		t.Fatal("expected connection to be added")
	}

	if err := applyMutation(g, Mutation{Op: "disconnect", Connection: conn}); err != nil {
		t.Fatal(err)
	}
	for _, c := range g.Pipeline.Connections {
		if c == conn {
			t.Fatal("expected connection to be removed")
		}
	}
}

func TestApplyMutationTuneUpdatesStagedParams(t *testing.T) {
	g := baseGraphForMutation()
	params := json.RawMessage(`{"path":"/tmp/new"}`)
	if err := applyMutation(g, Mutation{Op: "tune", NodeLabel: "src", TuneParams: params}); err != nil {
		t.Fatal(err)
	}
	if string(g.Pipeline.Nodes["src"].Params) != string(params) {
		t.Fatalf("expected staged params to update, got %s", g.Pipeline.Nodes["src"].Params)
	}
}

func TestApplyMutationUnknownOpRejected(t *testing.T) {
	g := baseGraphForMutation()
	if err := applyMutation(g, Mutation{Op: "levitate"}); err == nil {
		t.Fatal("expected an error for an unknown mutation op")
	}
}

func TestApplyBatchRollsBackOnStructuralCompileFailure(t *testing.T) {
	r := node.NewMapRegistry()
	builtin.Register(r)
	p := graph.Pipeline{
		Mode: graph.ModeDynamic,
		Nodes: map[string]graph.NodeInstance{
			"src": {Label: "src", Kind: "file_reader", Params: json.RawMessage(`{"path":"/dev/null"}`)},
			"snk": {Label: "snk", Kind: "http_output"},
		},
		NodeOrder:   []string{"src", "snk"},
		Connections: []graph.Connection{{FromLabel: "src", FromPin: "out", ToLabel: "snk", ToPin: "in"}},
	}
	compiler := &graph.Compiler{Registry: r}
	plan, _ := compiler.Compile(p)
	sess, err := NewSession("rollback-test", plan, r, Profiles[ProfileBalanced], zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	before := len(sess.State())

	// Connecting to a node that doesn't exist must fail the re-compile and
	// leave the live session untouched.
	resultCh := make(chan BatchResult, 1)
	err = sess.Submit(context.Background(), BatchRequest{
		Mutations: []Mutation{{
			Op:         "connect",
			Connection: graph.Connection{FromLabel: "src", FromPin: "out", ToLabel: "ghost", ToPin: "in"},
		}},
		ResultChan: resultCh,
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case res := <-resultCh:
		if res.Applied {
			t.Fatal("expected the batch to be rejected")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch result")
	}

	if after := len(sess.State()); after != before {
		t.Fatalf("expected session runtime untouched, had %d nodes, now %d", before, after)
	}
}

func TestApplyBatchStructuralAddNodeMaterializes(t *testing.T) {
	r := node.NewMapRegistry()
	builtin.Register(r)
	p := graph.Pipeline{
		Mode: graph.ModeDynamic,
		Nodes: map[string]graph.NodeInstance{
			"src": {Label: "src", Kind: "file_reader", Params: json.RawMessage(`{"path":"/dev/null"}`)},
			"snk": {Label: "snk", Kind: "http_output"},
		},
		NodeOrder:   []string{"src", "snk"},
		Connections: []graph.Connection{{FromLabel: "src", FromPin: "out", ToLabel: "snk", ToPin: "in"}},
	}
	compiler := &graph.Compiler{Registry: r}
	plan, _ := compiler.Compile(p)
	sess, err := NewSession("add-node-test", plan, r, Profiles[ProfileBalanced], zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	resultCh := make(chan BatchResult, 1)
	err = sess.Submit(context.Background(), BatchRequest{
		Mutations: []Mutation{
			{Op: "add_node", Label: "mid", Kind: "identity"},
			{Op: "disconnect", Connection: graph.Connection{FromLabel: "src", FromPin: "out", ToLabel: "snk", ToPin: "in"}},
			{Op: "connect", Connection: graph.Connection{FromLabel: "src", FromPin: "out", ToLabel: "mid", ToPin: "in"}},
			{Op: "connect", Connection: graph.Connection{FromLabel: "mid", FromPin: "out", ToLabel: "snk", ToPin: "in"}},
		},
		ResultChan: resultCh,
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case res := <-resultCh:
		if !res.Applied {
			t.Fatalf("expected batch to apply, got errors=%+v err=%v", res.Errors, res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch result")
	}

	if _, ok := sess.State()["mid"]; !ok {
		t.Fatal("expected the new node to be materialized into the live session")
	}
}
