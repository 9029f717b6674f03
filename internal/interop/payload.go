package interop

import (
	"github.com/segmentio/encoding/json"
)

// Payload is the serialized argument of a callback invocation: the JSON text
// the script side produced, or empty if it passed nothing.
type Payload []byte

// Empty reports whether the script side passed no value (or undefined/null).
func (p Payload) Empty() bool {
	return len(p) == 0 || string(p) == "null"
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (p Payload) Decode(v any) error {
	if p.Empty() {
		return nil
	}
	return json.Unmarshal(p, v)
}

// NewPayload serializes v. It is used by runtimes and tests that need to
// construct payloads on the host side.
func NewPayload(v any) (Payload, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Payload(b), nil
}
