package backend

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"inferproxy/pkg/types"
)

// maxErrorBody bounds how much of an upstream error response is retained.
const maxErrorBody = 64 * 1024

// transportError signals a network-level failure reaching a backend
// (refused connection, DNS failure, timeout). Always retryable.
type transportError struct {
	backend types.Backend
	err     error
}

func (e transportError) Error() string {
	return "backend unavailable: " + string(e.backend) + ": " + e.err.Error()
}

func (e transportError) Unwrap() error { return e.err }

// StatusCode maps transport failures to 502 for the HTTP layer.
func (e transportError) StatusCode() int { return 502 }

// ErrUnavailable wraps a transport-level failure for the given backend.
func ErrUnavailable(b types.Backend, err error) error {
	return transportError{backend: b, err: err}
}

// IsUnavailable reports whether err is a transport-level backend failure.
func IsUnavailable(err error) bool {
	var te transportError
	return errors.As(err, &te)
}

// statusError preserves a non-2xx backend reply so the HTTP layer can
// surface it verbatim with the upstream's status code and body.
type statusError struct {
	backend     types.Backend
	status      int
	contentType string
	body        []byte
}

func (e statusError) Error() string {
	msg := strings.TrimSpace(string(e.body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return fmt.Sprintf("%s returned status %d", e.backend, e.status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.backend, e.status, msg)
}

func (e statusError) StatusCode() int { return e.status }

// ErrStatus wraps a non-2xx upstream reply.
func ErrStatus(b types.Backend, status int, contentType string, body []byte) error {
	return statusError{backend: b, status: status, contentType: contentType, body: body}
}

// IsRejected reports whether the backend itself refused the request (4xx).
// Rejections are never retried against the other backend.
func IsRejected(err error) bool {
	var se statusError
	return errors.As(err, &se) && se.status >= 400 && se.status < 500
}

// IsRetryable reports whether a fallback attempt may help: transport
// failures and upstream 5xx replies qualify, rejections do not.
func IsRetryable(err error) bool {
	if IsUnavailable(err) {
		return true
	}
	var se statusError
	return errors.As(err, &se) && se.status >= 500
}

// AsStatus extracts a preserved upstream reply from err, if present.
func AsStatus(err error) (status int, contentType string, body []byte, ok bool) {
	var se statusError
	if !errors.As(err, &se) {
		return 0, "", nil, false
	}
	return se.status, se.contentType, se.body, true
}

// readErrorBody drains at most maxErrorBody bytes for diagnostics.
func readErrorBody(r io.Reader) []byte {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return b
}
