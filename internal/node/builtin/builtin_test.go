package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

func collectEmitContext() (node.EmitContext, *[]packet.Packet) {
	var got []packet.Packet
	return node.EmitContext{
		Emit: func(pin string, p packet.Packet) error {
			got = append(got, p)
			return nil
		},
		Telemetry: func(string, json.RawMessage, *int64) {},
	}, &got
}

func TestFileReaderFlushEmitsContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("hello streamkit"), 0o600); err != nil {
		t.Fatal(err)
	}

	params, _ := json.Marshal(map[string]string{"path": path})
	inst, err := NewFileReader(params, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ectx, got := collectEmitContext()
	if err := inst.Flush(context.Background(), ectx); err != nil {
		t.Fatal(err)
	}
	if len(*got) != 1 || string((*got)[0].Bytes) != "hello streamkit" {
		t.Fatalf("unexpected emitted packets: %+v", *got)
	}
}

func TestFileReaderMissingPathRejected(t *testing.T) {
	if _, err := NewFileReader(json.RawMessage(`{}`), zerolog.Nop()); err == nil {
		t.Fatal("expected an error for a missing path")
	}
}

func TestAudioGainAppliesScale(t *testing.T) {
	params, _ := json.Marshal(map[string]float64{"gain_db": 6})
	inst, err := NewAudioGain(params, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ectx, got := collectEmitContext()
	in := packet.NewRawAudio([]byte{0x00, 0x10}, packet.AudioFormat{SampleRate: 48000, Channels: 1})
	if _, err := inst.Process(context.Background(), "in", in, ectx); err != nil {
		t.Fatal(err)
	}
	if len(*got) != 1 {
		t.Fatalf("expected 1 emitted packet, got %d", len(*got))
	}
	if len((*got)[0].Samples) != 2 {
		t.Fatalf("expected output samples of same length, got %d", len((*got)[0].Samples))
	}
}

func TestAudioGainUnityPassesThroughUnchanged(t *testing.T) {
	params, _ := json.Marshal(map[string]float64{"gain_db": 0})
	inst, err := NewAudioGain(params, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ectx, got := collectEmitContext()
	in := packet.NewRawAudio([]byte{0x01, 0x02}, packet.AudioFormat{SampleRate: 48000, Channels: 1})
	if _, err := inst.Process(context.Background(), "in", in, ectx); err != nil {
		t.Fatal(err)
	}
	if string((*got)[0].Samples) != string(in.Samples) {
		t.Fatalf("unity gain should pass samples through unchanged")
	}
}

func TestAudioResampleNarrowsSampleRateAndWildcardsChannels(t *testing.T) {
	params, _ := json.Marshal(map[string]int{"target_sample_rate": 16000})
	declared := AudioResampleDefinition.Outputs[0].Produces
	narrowed := AudioResampleDefinition.Narrow(params, declared)
	if narrowed.Audio.SampleRate != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", narrowed.Audio.SampleRate)
	}
	if narrowed.Audio.Channels != 0 {
		t.Fatalf("expected wildcard channel count, got %d", narrowed.Audio.Channels)
	}
}

func TestIdentityForwardsPacketUnchanged(t *testing.T) {
	inst, _ := NewIdentity(nil, zerolog.Nop())
	ectx, got := collectEmitContext()
	in := packet.NewText("hi")
	if _, err := inst.Process(context.Background(), "in", in, ectx); err != nil {
		t.Fatal(err)
	}
	if len(*got) != 1 || (*got)[0].Text != "hi" {
		t.Fatalf("unexpected forwarded packet: %+v", *got)
	}
}

func TestHTTPOutputCollectsChunks(t *testing.T) {
	inst, _ := NewHTTPOutput(nil, zerolog.Nop())
	out := inst.(*httpOutput)
	ectx, _ := collectEmitContext()
	_, _ = out.Process(context.Background(), "in", packet.NewBinary([]byte("ab"), ""), ectx)
	_, _ = out.Process(context.Background(), "in", packet.NewBinary([]byte("cd"), ""), ectx)
	if string(out.Collected()) != "abcd" {
		t.Fatalf("expected concatenated chunks, got %q", out.Collected())
	}
}

func TestAllRegistersEveryDefinitionWithUniqueKind(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range All() {
		if seen[b.Definition.Kind] {
			t.Fatalf("duplicate kind %q in builtin registry", b.Definition.Kind)
		}
		seen[b.Definition.Kind] = true
		if b.New == nil {
			t.Fatalf("kind %q has a nil factory", b.Definition.Kind)
		}
	}
}

func TestRegisterSeedsMapRegistry(t *testing.T) {
	r := node.NewMapRegistry()
	Register(r)
	if _, ok := r.Lookup("audio::gain"); !ok {
		t.Fatal("expected audio::gain to be registered")
	}
	if len(r.Definitions()) != len(All()) {
		t.Fatalf("expected %d definitions, got %d", len(All()), len(r.Definitions()))
	}
}
