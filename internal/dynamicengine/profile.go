package dynamicengine

// ProfileName selects a preset buffer/latency tradeoff for a session, per
// the engine profile configuration surface.
type ProfileName string

const (
	ProfileLowLatency    ProfileName = "low-latency"
	ProfileBalanced      ProfileName = "balanced"
	ProfileHighThroughput ProfileName = "high-throughput"
)

// Profile configures channel capacities for a session. DynamicBuffer is the
// default size for a node's input Channel; PerNodeOverride lets specific
// labels deviate (e.g. a known-bursty mixer input).
type Profile struct {
	Name            ProfileName
	DynamicBuffer   int
	PerNodeOverride map[string]int
}

// DefaultProfile returns the "balanced" preset.
func DefaultProfile() Profile {
	return Profiles[ProfileBalanced]
}

// Profiles holds the three engine profile presets.
var Profiles = map[ProfileName]Profile{
	ProfileLowLatency:     {Name: ProfileLowLatency, DynamicBuffer: 4},
	ProfileBalanced:       {Name: ProfileBalanced, DynamicBuffer: 32},
	ProfileHighThroughput: {Name: ProfileHighThroughput, DynamicBuffer: 256},
}

func (p Profile) dynamicBufferSize() int {
	if p.DynamicBuffer <= 0 {
		return Profiles[ProfileBalanced].DynamicBuffer
	}
	return p.DynamicBuffer
}

func (p Profile) bufferFor(label string) int {
	if n, ok := p.PerNodeOverride[label]; ok && n > 0 {
		return n
	}
	return p.dynamicBufferSize()
}
