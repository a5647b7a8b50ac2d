package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/streamkit/streamkit/internal/node"
	"github.com/streamkit/streamkit/internal/packet"
)

type audioResampleParams struct {
	TargetSampleRate int `json:"target_sample_rate"`
}

// AudioResampleDefinition describes audio::resample: the reference node for
// parameter-dependent output narrowing. Its declared output is RawAudio
// with SampleRate fixed by target_sample_rate and Channels left at the
// wildcard sentinel (0) — the compiler's compatibility check then passes
// the upstream channel count through unchanged rather than the node
// claiming a channel count it does not itself decide.
var AudioResampleDefinition = node.Definition{
	Kind:        "audio::resample",
	Description: "resamples a RawAudio stream to a fixed target sample rate",
	ParamSchema: json.RawMessage(`{"type":"object","required":["target_sample_rate"],"properties":{"target_sample_rate":{"type":"integer"}}}`),
	Inputs: []node.InputPin{
		{Name: "in", Cardinality: node.CardinalityOne, Accepts: []packet.PacketType{{Variant: packet.VariantRawAudio}}},
	},
	Outputs: []node.OutputPin{
		{Name: "out", Cardinality: node.CardinalityBroadcast, Produces: packet.PacketType{Variant: packet.VariantRawAudio}},
	},
	Categories: []string{"oneshot", "dynamic"},
	Narrow:     narrowAudioResampleOutput,
}

func narrowAudioResampleOutput(params json.RawMessage, declared packet.PacketType) packet.PacketType {
	var p audioResampleParams
	_ = json.Unmarshal(params, &p) // malformed params surface earlier, at construction
	declared.Audio.SampleRate = p.TargetSampleRate
	declared.Audio.Channels = 0 // wildcard: passes the upstream channel count through
	return declared
}

type audioResample struct {
	targetSampleRate int
	logger           zerolog.Logger
}

// NewAudioResample constructs an audio::resample instance.
func NewAudioResample(params json.RawMessage, logger zerolog.Logger) (node.Instance, error) {
	var p audioResampleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("audio::resample: decode params: %w", err)
	}
	if p.TargetSampleRate <= 0 {
		return nil, fmt.Errorf("audio::resample: target_sample_rate must be positive")
	}
	return &audioResample{targetSampleRate: p.TargetSampleRate, logger: logger}, nil
}

func (r *audioResample) Process(_ context.Context, _ string, p packet.Packet, ectx node.EmitContext) (node.Result, error) {
	if p.Variant != packet.VariantRawAudio {
		return node.ResultOK, fmt.Errorf("audio::resample: unexpected variant %s", p.Variant)
	}
	if p.Audio.SampleRate == r.targetSampleRate {
		return node.ResultOK, ectx.Emit("out", p)
	}
	// Real resampling is a plugin concern; the reference node only relabels
	// the format so the engine and compiler can be exercised end-to-end.
	out := p
	out.Audio.SampleRate = r.targetSampleRate
	return node.ResultOK, ectx.Emit("out", out)
}

func (r *audioResample) UpdateParams(context.Context, json.RawMessage) error {
	return fmt.Errorf("audio::resample: target_sample_rate is not tunable")
}

func (r *audioResample) Flush(context.Context, node.EmitContext) error { return nil }
func (r *audioResample) Destroy(context.Context) error                 { return nil }
