package packet

// CompatStrategy is the closed set of compatibility checks a PacketType can
// advertise, per the variant table in the packet model.
type CompatStrategy int

const (
	StrategyExact CompatStrategy = iota
	StrategyAny
	StrategyWildcard
)

// PacketType describes the type a pin produces or accepts. It is distinct
// from Packet: a PacketType can express the two type-system-only markers
// (Any, Passthrough) that never appear on a constructed value.
type PacketType struct {
	Variant Variant

	// Audio is populated when Variant == VariantRawAudio; zero fields are
	// wildcard sentinels under StrategyWildcard.
	Audio AudioFormat

	// CustomTypeID is populated when Variant == VariantCustom; empty string
	// is the wildcard sentinel.
	CustomTypeID string
}

// AnyType is the type-system marker that matches every produced type.
var AnyType = PacketType{Variant: VariantAny}

// PassthroughType is the type-system marker resolved at compile time to the
// upstream producer's type.
var PassthroughType = PacketType{Variant: VariantPassthrough}

// Strategy returns the compatibility strategy that applies to t when t is
// used as the *accepted* side of a compatibility check.
func (t PacketType) Strategy() CompatStrategy {
	switch t.Variant {
	case VariantAny:
		return StrategyAny
	case VariantRawAudio, VariantCustom:
		return StrategyWildcard
	default:
		return StrategyExact
	}
}

// IsCompatible reports whether a packet advertised as `produced` may be
// delivered to a pin accepting `accepted`, per the three compatibility
// strategies in the packet/type model. It is always a constant-time local
// check — no graph traversal happens here (the graph compiler resolves
// Passthrough types before calling it).
func IsCompatible(produced, accepted PacketType) bool {
	switch accepted.Strategy() {
	case StrategyAny:
		return true
	case StrategyExact:
		return produced.Variant == accepted.Variant
	case StrategyWildcard:
		if produced.Variant != accepted.Variant {
			return false
		}
		switch accepted.Variant {
		case VariantRawAudio:
			return wildcardMatch(produced.Audio.SampleRate, accepted.Audio.SampleRate) &&
				wildcardMatch(produced.Audio.Channels, accepted.Audio.Channels) &&
				sampleFormatMatch(produced.Audio.SampleFormat, accepted.Audio.SampleFormat)
		case VariantCustom:
			return accepted.CustomTypeID == "" || produced.CustomTypeID == accepted.CustomTypeID
		default:
			return true
		}
	default:
		return false
	}
}

// wildcardMatch compares a produced numeric field against an accepted field
// that may be the wildcard sentinel (0).
func wildcardMatch(produced, accepted int) bool {
	return accepted == 0 || produced == accepted
}

func sampleFormatMatch(produced, accepted SampleFormat) bool {
	return accepted == SampleFormatUnspecified || produced == accepted
}

// IsCompatibleWithAny reports whether produced is compatible with at least
// one of the accepted types on an input pin's ordered accept list.
func IsCompatibleWithAny(produced PacketType, accepted []PacketType) bool {
	for _, a := range accepted {
		if IsCompatible(produced, a) {
			return true
		}
	}
	return false
}
