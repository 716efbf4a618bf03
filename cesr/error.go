package cesr

import "errors"

// Encode errors.
var (
	// ErrPayloadTooLarge means a variable frame body exceeds the 24-bit
	// triplet count the large-identifier header can carry.
	ErrPayloadTooLarge = errors.New("cesr: payload too large")
	// ErrMissingHops means a routed message was encoded with an empty hop list.
	ErrMissingHops = errors.New("cesr: routed message without hops")
	// ErrInvalidVid means a VID is not valid UTF-8 or contains control bytes.
	ErrInvalidVid = errors.New("cesr: invalid vid")
)

// Decode errors.
var (
	ErrUnexpectedData    = errors.New("cesr: unexpected data")
	ErrUnexpectedMsgType = errors.New("cesr: unexpected message type")
	ErrTrailingGarbage   = errors.New("cesr: trailing garbage")
	ErrSignature         = errors.New("cesr: malformed signature frame")
	ErrVid               = errors.New("cesr: malformed vid frame")
	ErrVersionMismatch   = errors.New("cesr: protocol version mismatch")
)
