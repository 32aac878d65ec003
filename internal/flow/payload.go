package flow

import "encoding/json"

// Payload is the typed response a presenter supplies at a suspension point.
// The engine dispatches on the concrete type only, never on the value: a
// string payload is a chosen file whatever it contains, a JSON payload is a
// consent decision whatever it says.
type Payload interface {
	payloadKind() string
}

// StringPayload carries a file path or identifier chosen by the operator.
type StringPayload struct {
	Value string
}

// JSONPayload carries a structured consent decision. The engine forwards it
// verbatim into the donate command.
type JSONPayload struct {
	Value json.RawMessage
}

// TruePayload is an affirmative answer to a confirm prompt.
type TruePayload struct{}

// FalsePayload is a negative answer to a confirm prompt.
type FalsePayload struct{}

// VoidPayload is a skip or empty response.
type VoidPayload struct{}

func (StringPayload) payloadKind() string { return "PayloadString" }
func (JSONPayload) payloadKind() string   { return "PayloadJSON" }
func (TruePayload) payloadKind() string   { return "PayloadTrue" }
func (FalsePayload) payloadKind() string  { return "PayloadFalse" }
func (VoidPayload) payloadKind() string   { return "PayloadVoid" }

// Kind returns the payload's wire discriminator.
func Kind(p Payload) string {
	if p == nil {
		return "PayloadVoid"
	}
	return p.payloadKind()
}

// ParsePayload builds a Payload from a wire discriminator and raw value.
// Unknown kinds come back as VoidPayload: an unrecognizable response is a
// skip, not a fault.
func ParsePayload(kind string, value json.RawMessage) Payload {
	switch kind {
	case "PayloadString":
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return VoidPayload{}
		}
		return StringPayload{Value: s}
	case "PayloadJSON":
		return JSONPayload{Value: value}
	case "PayloadTrue":
		return TruePayload{}
	case "PayloadFalse":
		return FalsePayload{}
	default:
		return VoidPayload{}
	}
}
