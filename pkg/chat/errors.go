package chat

import (
	"fmt"
	"strings"
)

// UpstreamError is an explicit error frame from the server, surfaced to the
// caller as a dismissible failure.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}

// RestError is a failure on the request/response fallback path.
type RestError struct {
	StatusCode int
	Err        error
}

func (e *RestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat request failed: %v", e.Err)
}

func (e *RestError) Unwrap() error { return e.Err }

// authSignatures are error-frame fragments meaning the session is no longer
// valid for the persistent transport.
var authSignatures = []string{
	"authentication",
	"unauthorized",
	"session expired",
	"invalid session",
	"invalid token",
}

// IsAuthFailureMessage reports whether an upstream error frame describes an
// authentication or session failure.
func IsAuthFailureMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, sig := range authSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
