package broker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Serializer turns a published message value into the opaque byte payload
// that gets stored and shipped.
type Serializer interface {
	Serialize(msg interface{}) ([]byte, error)
}

// JSONSerializer is the default Serializer. A json.RawMessage value passes
// through byte-for-byte, which is how already-serialized outbox payloads are
// forwarded without re-encoding.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(msg interface{}) ([]byte, error) {
	if raw, ok := msg.(json.RawMessage); ok {
		return raw, nil
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("broker: error serializing message to JSON: %w", err)
	}

	return b, nil
}

// TypeName reports the logical type name of a message value for logging and
// re-hydration, with any pointer markers stripped.
func TypeName(msg interface{}) string {
	return strings.TrimLeft(fmt.Sprintf("%T", msg), "*")
}
