package packet

import "errors"

var (
	// ErrNilPacket is returned when a nil packet is handed to the serializer.
	ErrNilPacket = errors.New("packet: nil packet")

	// ErrEmptyPayload is returned when an empty delivery body is decoded.
	ErrEmptyPayload = errors.New("packet: empty payload")
)
