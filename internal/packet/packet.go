// Package packet defines the closed set of payloads that flow between pins
// in a compiled pipeline, and the compatibility rules used to type-check
// connections at compile time.
package packet

import "time"

// Variant identifies which payload a Packet carries. The set is closed: new
// payload shapes are added through the Custom escape hatch, never by
// widening this enum at runtime.
type Variant int

const (
	VariantRawAudio Variant = iota
	VariantOpusAudio
	VariantText
	VariantTranscription
	VariantCustom
	VariantBinary

	// VariantAny and VariantPassthrough never appear on a constructed Packet;
	// they exist only in PacketType as type-system markers (see PacketType).
	VariantAny
	VariantPassthrough
)

func (v Variant) String() string {
	switch v {
	case VariantRawAudio:
		return "RawAudio"
	case VariantOpusAudio:
		return "OpusAudio"
	case VariantText:
		return "Text"
	case VariantTranscription:
		return "Transcription"
	case VariantCustom:
		return "Custom"
	case VariantBinary:
		return "Binary"
	case VariantAny:
		return "Any"
	case VariantPassthrough:
		return "Passthrough"
	default:
		return "Unknown"
	}
}

// SampleFormat enumerates the interleaved sample encodings RawAudio supports.
type SampleFormat int

const (
	SampleFormatUnspecified SampleFormat = iota // wildcard sentinel
	SampleFormatF32
	SampleFormatS16LE
)

// AudioFormat describes the shape of a RawAudio buffer.
type AudioFormat struct {
	SampleRate   int // 0 is the wildcard sentinel
	Channels     int // 0 is the wildcard sentinel
	SampleFormat SampleFormat
}

// Timing carries the optional per-packet timing metadata every variant may
// independently set.
type Timing struct {
	TimestampUs *int64
	DurationUs  *int64
	Sequence    *int64
}

// Segment is a single transcribed span within a Transcription packet.
type Segment struct {
	Text       string
	StartMs    int64
	EndMs      int64
	Confidence *float64
}

// Packet is the unit of data exchanged between pins. Exactly one of the
// payload fields is populated, selected by Variant.
type Packet struct {
	Variant Variant
	Timing  Timing

	// RawAudio
	Samples []byte
	Audio   AudioFormat

	// OpusAudio / Binary
	Bytes       []byte
	ContentType string // Binary only, optional

	// Text / Transcription
	Text     string
	Segments []Segment
	Language string // Transcription only, optional

	// Custom
	TypeID  string
	Payload []byte // JSON
}

// NewRawAudio constructs a RawAudio packet.
func NewRawAudio(samples []byte, format AudioFormat) Packet {
	return Packet{Variant: VariantRawAudio, Samples: samples, Audio: format}
}

// NewOpusAudio constructs an OpusAudio packet.
func NewOpusAudio(frame []byte) Packet {
	return Packet{Variant: VariantOpusAudio, Bytes: frame}
}

// NewText constructs a Text packet.
func NewText(text string) Packet {
	return Packet{Variant: VariantText, Text: text}
}

// NewTranscription constructs a Transcription packet.
func NewTranscription(text string, segments []Segment, language string) Packet {
	return Packet{Variant: VariantTranscription, Text: text, Segments: segments, Language: language}
}

// NewCustom constructs a Custom packet carrying a plugin-defined payload.
func NewCustom(typeID string, jsonPayload []byte) Packet {
	return Packet{Variant: VariantCustom, TypeID: typeID, Payload: jsonPayload}
}

// NewBinary constructs a Binary packet.
func NewBinary(data []byte, contentType string) Packet {
	return Packet{Variant: VariantBinary, Bytes: data, ContentType: contentType}
}

// WithTimestampUs returns a copy of p with TimestampUs set.
func (p Packet) WithTimestampUs(us int64) Packet {
	p.Timing.TimestampUs = &us
	return p
}

// WithDurationUs returns a copy of p with DurationUs set.
func (p Packet) WithDurationUs(us int64) Packet {
	p.Timing.DurationUs = &us
	return p
}

// WithSequence returns a copy of p with Sequence set.
func (p Packet) WithSequence(seq int64) Packet {
	p.Timing.Sequence = &seq
	return p
}

// Clock returns the current wall-clock time. Nodes that stamp packets with
// TimestampUs use this indirection so tests can substitute a fixed clock.
var Clock = time.Now
