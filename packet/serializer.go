package packet

import (
	"encoding/json"
	"fmt"
)

// Serializer converts packets to and from wire bytes. The transit layer never
// inspects the bytes it produces; implementations must round-trip every field
// of Packet.
type Serializer interface {
	Marshal(p *Packet) ([]byte, error)
	Unmarshal(data []byte) (*Packet, error)
}

// JSONSerializer is the default wire format.
type JSONSerializer struct{}

// NewJSONSerializer creates a JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal encodes the packet as JSON.
func (s *JSONSerializer) Marshal(p *Packet) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPacket
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, &SerializationError{Op: "marshal", Category: p.Category, Err: err}
	}
	return data, nil
}

// Unmarshal decodes a packet from JSON. Unrecognized categories are mapped to
// CategoryUnknown rather than rejected, so protocol additions from newer
// nodes degrade gracefully.
func (s *JSONSerializer) Unmarshal(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &SerializationError{Op: "unmarshal", Err: err}
	}
	p.Category = ParseCategory(string(p.Category))
	return &p, nil
}

// SerializationError wraps a codec failure with the operation that produced it.
type SerializationError struct {
	Op       string
	Category Category
	Err      error
}

func (e *SerializationError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("packet: %s of %s packet failed: %v", e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("packet: %s failed: %v", e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
