package chat

import "errors"

// Failure classes for inbound frames and storage. Every one of them is
// absorbed by the connection that hit it; none closes the hub.
var (
	ErrProtocol     = errors.New("malformed or unroutable frame")
	ErrUnauthorized = errors.New("privileged frame without a valid admin credential")
	ErrStorage      = errors.New("message log unavailable")
	ErrConnection   = errors.New("connection send failed")
)
