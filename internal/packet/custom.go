package packet

import "encoding/json"

// CustomEnvelopeVersion is the wire version of the Custom packet envelope.
// Bump only on a breaking change to the envelope shape itself — not on
// changes to any individual type_id's payload, which plugins version
// independently.
const CustomEnvelopeVersion = 1

// CustomEnvelope is the stable, versioned wrapper used whenever a Custom
// packet's payload needs to cross a process boundary (plugin ABI, event
// bus, persistence). It is deliberately flat so older readers can still
// extract TypeID/Payload after a SchemaVersion bump they don't understand.
type CustomEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	TypeID        string          `json:"type_id"`
	Payload       json.RawMessage `json:"payload"`
}

// EncodeCustom serializes a Custom packet into its stable wire envelope.
func EncodeCustom(p Packet) ([]byte, error) {
	env := CustomEnvelope{
		SchemaVersion: CustomEnvelopeVersion,
		TypeID:        p.TypeID,
		Payload:       json.RawMessage(p.Payload),
	}
	return json.Marshal(env)
}

// DecodeCustom deserializes a wire envelope back into a Custom packet.
func DecodeCustom(data []byte) (Packet, error) {
	var env CustomEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Packet{}, err
	}
	return Packet{
		Variant: VariantCustom,
		TypeID:  env.TypeID,
		Payload: []byte(env.Payload),
	}, nil
}
