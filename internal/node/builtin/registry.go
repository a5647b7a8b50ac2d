package builtin

import "github.com/streamkit/streamkit/internal/node"

// All returns the reference Builtin set, ready to seed a node.MapRegistry.
// Plugin hosts register alongside these; a plugin's kind is rejected if it
// collides with a built-in kind (see internal/pluginhost).
func All() []node.Builtin {
	return []node.Builtin{
		{Definition: FileReaderDefinition, New: NewFileReader},
		{Definition: HTTPInputDefinition, New: NewHTTPInput},
		{Definition: HTTPOutputDefinition, New: NewHTTPOutput},
		{Definition: AudioGainDefinition, New: NewAudioGain},
		{Definition: AudioResampleDefinition, New: NewAudioResample},
		{Definition: IdentityDefinition, New: NewIdentity},
	}
}

// Register seeds r with every reference Builtin.
func Register(r *node.MapRegistry) {
	for _, b := range All() {
		r.Register(b)
	}
}
