package pluginhost_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/node/builtin"
	"github.com/streamkit/streamkit/internal/packet"
	"github.com/streamkit/streamkit/internal/pluginhost"
)

// fakeLoader satisfies pluginhost.Loader without touching the real
// plugin/WASM mechanisms, so Host's registration logic can be exercised
// directly.
type fakeLoader struct {
	dialect pluginhost.Dialect
	modules map[string]pluginhost.Module
}

func (l fakeLoader) Dialect() pluginhost.Dialect { return l.dialect }

func (l fakeLoader) Load(path string) (pluginhost.Module, error) {
	m, ok := l.modules[path]
	if !ok {
		return nil, errNotFound(path)
	}
	return m, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

type fakeModule struct {
	kind       string
	apiVersion int
	panicOn    string
}

func (m fakeModule) Metadata() pluginhost.Metadata {
	return pluginhost.Metadata{
		Kind:       m.kind,
		APIVersion: m.apiVersion,
		Definition: node.Definition{
			Kind:        m.kind,
			Description: "test plugin kind",
			Inputs:      []node.InputPin{{Name: "in", Cardinality: node.CardinalityOne, Accepts: []packet.PacketType{packet.AnyType}}},
		},
	}
}

func (m fakeModule) New(json.RawMessage, zerolog.Logger) (node.Instance, error) {
	return &fakeInstance{panicOn: m.panicOn}, nil
}

type fakeInstance struct{ panicOn string }

func (f *fakeInstance) Process(ctx context.Context, inputPin string, p packet.Packet, ectx node.EmitContext) (node.Result, error) {
	if f.panicOn == "process" {
		panic("boom")
	}
	return node.ResultOK, nil
}
func (f *fakeInstance) UpdateParams(context.Context, json.RawMessage) error { return nil }
func (f *fakeInstance) Flush(context.Context, node.EmitContext) error      { return nil }
func (f *fakeInstance) Destroy(context.Context) error                     { return nil }

func testBase() node.Registry {
	r := node.NewMapRegistry()
	builtin.Register(r)
	return r
}

func TestHostLoadRegistersUnderPrefixedKind(t *testing.T) {
	loader := fakeLoader{dialect: pluginhost.DialectNative, modules: map[string]pluginhost.Module{
		"plug.so": fakeModule{kind: "my_codec", apiVersion: pluginhost.CurrentAPIVersion},
	}}
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())

	kind, err := host.Load(loader, "plug.so")
	if err != nil {
		t.Fatal(err)
	}
	if kind != "plugin::native::my_codec" {
		t.Fatalf("expected prefixed kind, got %q", kind)
	}
	if _, ok := host.Lookup(kind); !ok {
		t.Fatal("expected Lookup to find the registered kind")
	}
}

func TestHostLoadRejectsDuplicateKind(t *testing.T) {
	loader := fakeLoader{dialect: pluginhost.DialectNative, modules: map[string]pluginhost.Module{
		"a.so": fakeModule{kind: "dup", apiVersion: pluginhost.CurrentAPIVersion},
		"b.so": fakeModule{kind: "dup", apiVersion: pluginhost.CurrentAPIVersion},
	}}
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())

	if _, err := host.Load(loader, "a.so"); err != nil {
		t.Fatal(err)
	}
	if _, err := host.Load(loader, "b.so"); err == nil {
		t.Fatal("expected a kind conflict on the second load")
	}
}

func TestHostLoadRejectsIncompatibleAPIVersion(t *testing.T) {
	loader := fakeLoader{dialect: pluginhost.DialectNative, modules: map[string]pluginhost.Module{
		"a.so": fakeModule{kind: "bad_version", apiVersion: pluginhost.CurrentAPIVersion + 1},
	}}
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())
	if _, err := host.Load(loader, "a.so"); err == nil {
		t.Fatal("expected an api_version mismatch to be rejected")
	}
}

func TestHostUnloadRefusesWhileInUse(t *testing.T) {
	loader := fakeLoader{dialect: pluginhost.DialectNative, modules: map[string]pluginhost.Module{
		"a.so": fakeModule{kind: "still_used", apiVersion: pluginhost.CurrentAPIVersion},
	}}
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())
	kind, err := host.Load(loader, "a.so")
	if err != nil {
		t.Fatal(err)
	}

	if err := host.Unload(kind, func(string) bool { return true }); err == nil {
		t.Fatal("expected unload to be refused while in use")
	}
	if err := host.Unload(kind, func(string) bool { return false }); err != nil {
		t.Fatalf("expected unload to succeed once unreferenced: %v", err)
	}
	if _, ok := host.Lookup(kind); ok {
		t.Fatal("expected the kind to be gone after unload")
	}
}

func TestHostUnloadUnknownKindErrors(t *testing.T) {
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())
	if err := host.Unload("plugin::native::nope", nil); err == nil {
		t.Fatal("expected an error unloading a kind that was never registered")
	}
}

func TestHostInstanceRecoversPluginPanic(t *testing.T) {
	loader := fakeLoader{dialect: pluginhost.DialectNative, modules: map[string]pluginhost.Module{
		"a.so": fakeModule{kind: "panicky", apiVersion: pluginhost.CurrentAPIVersion, panicOn: "process"},
	}}
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())
	kind, err := host.Load(loader, "a.so")
	if err != nil {
		t.Fatal(err)
	}

	b, ok := host.Lookup(kind)
	if !ok {
		t.Fatal("expected lookup to succeed")
	}
	inst, err := b.New(nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = inst.Process(context.Background(), "in", packet.NewText("x"), node.EmitContext{})
	if err == nil {
		t.Fatal("expected the panic to surface as an error, not propagate")
	}
}

func TestHostDefinitionsIncludesBuiltinsAndPlugins(t *testing.T) {
	loader := fakeLoader{dialect: pluginhost.DialectWASM, modules: map[string]pluginhost.Module{
		"a.wasm": fakeModule{kind: "extra", apiVersion: pluginhost.CurrentAPIVersion},
	}}
	host := pluginhost.NewHost(testBase(), nil, nil, zerolog.Nop())
	if _, err := host.Load(loader, "a.wasm"); err != nil {
		t.Fatal(err)
	}
	defs := host.Definitions()
	sawBuiltin, sawPlugin := false, false
	for _, d := range defs {
		if d.Kind == "file_reader" {
			sawBuiltin = true
		}
		if d.Kind == "extra" {
			sawPlugin = true
		}
	}
	if !sawBuiltin || !sawPlugin {
		t.Fatalf("expected both builtin and plugin kinds, got %+v", defs)
	}
}
