package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

type audioGainParams struct {
	GainDB float64 `json:"gain_db"`
}

// AudioGainDefinition describes audio::gain: a RawAudio transform that
// scales sample amplitude. Its output pin declares PassthroughType so the
// compiler resolves the concrete sample format/rate/channels from whatever
// is connected upstream; gain itself never changes those fields.
var AudioGainDefinition = node.Definition{
	Kind:        "audio::gain",
	Description: "applies a fixed gain, in dB, to a RawAudio stream",
	ParamSchema: json.RawMessage(`{"type":"object","properties":{"gain_db":{"type":"number"}}}`),
	Inputs: []node.InputPin{
		{Name: "in", Cardinality: node.CardinalityOne, Accepts: []packet.PacketType{{Variant: packet.VariantRawAudio}}},
	},
	Outputs: []node.OutputPin{
		{Name: "out", Cardinality: node.CardinalityBroadcast, Produces: packet.PassthroughType},
	},
	Categories:    []string{"oneshot", "dynamic"},
	TunableParams: []string{"gain_db"},
}

type audioGain struct {
	gainLinear float64
	logger     zerolog.Logger
}

// NewAudioGain constructs an audio::gain instance.
func NewAudioGain(params json.RawMessage, logger zerolog.Logger) (node.Instance, error) {
	var p audioGainParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("audio::gain: decode params: %w", err)
		}
	}
	return &audioGain{gainLinear: dbToLinear(p.GainDB), logger: logger}, nil
}

func (g *audioGain) Process(_ context.Context, _ string, p packet.Packet, ectx node.EmitContext) (node.Result, error) {
	if p.Variant != packet.VariantRawAudio {
		return node.ResultOK, fmt.Errorf("audio::gain: unexpected variant %s", p.Variant)
	}
	if g.gainLinear == 1.0 {
		return node.ResultOK, ectx.Emit("out", p)
	}
	scaled := applyGainS16LE(p.Samples, g.gainLinear)
	out := p
	out.Samples = scaled
	return node.ResultOK, ectx.Emit("out", out)
}

func (g *audioGain) UpdateParams(_ context.Context, params json.RawMessage) error {
	var p audioGainParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("audio::gain: decode params: %w", err)
	}
	g.gainLinear = dbToLinear(p.GainDB)
	return nil
}

func (g *audioGain) Flush(context.Context, node.EmitContext) error { return nil }
func (g *audioGain) Destroy(context.Context) error                 { return nil }

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// applyGainS16LE scales a little-endian 16-bit PCM buffer in place-ish
// (returns a new slice; the engine treats packets as immutable once emitted
// upstream). Out-of-range samples clip rather than wrap.
func applyGainS16LE(samples []byte, gain float64) []byte {
	out := make([]byte, len(samples))
	for i := 0; i+1 < len(samples); i += 2 {
		v := int16(uint16(samples[i]) | uint16(samples[i+1])<<8)
		scaled := float64(v) * gain
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		}
		if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		sv := int16(scaled)
		out[i] = byte(uint16(sv))
		out[i+1] = byte(uint16(sv) >> 8)
	}
	return out
}
