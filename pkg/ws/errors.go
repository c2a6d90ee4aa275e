package ws

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Send when the connection is not open. The
// caller is expected to fall back to the request/response transport.
var ErrNotConnected = errors.New("websocket not connected")

// AuthError means the server rejected the connection or session. Handled
// internally by disabling the persistent transport; never shown to the user.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectionError means the socket could not be opened or stayed down after
// all reconnect attempts.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
