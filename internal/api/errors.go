// Package api provides the client for the RACM analysis service.
package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// Sentinel errors for the response classes the client distinguishes. All are
// returned wrapped with the operation, status, and response body.
var (
	// ErrAuthFailed indicates the token was rejected (401/403).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrPayloadTooLarge indicates the service rejected the upload size (413).
	ErrPayloadTooLarge = errors.New("file too large")

	// ErrBadRequest indicates a malformed submission (400).
	ErrBadRequest = errors.New("bad request")

	// ErrServer indicates a non-2xx response not otherwise classified.
	ErrServer = errors.New("server error")
)

// TransportError wraps a request that never produced an HTTP response
// (connection refused, DNS failure, timeout). Poll loops treat these as
// transient and keep ticking.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is a request-level failure rather
// than an HTTP status rejection.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// classifyStatus converts a non-2xx response into the matching sentinel.
func classifyStatus(op string, code int, body []byte) error {
	switch code {
	case nethttp.StatusUnauthorized, nethttp.StatusForbidden:
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrAuthFailed, code, body)
	case nethttp.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrPayloadTooLarge, code, body)
	case nethttp.StatusBadRequest:
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrBadRequest, code, body)
	default:
		return fmt.Errorf("%s: %w: status %d: %s", op, ErrServer, code, body)
	}
}
