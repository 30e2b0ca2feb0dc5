package gateway

import (
	"errors"
	"fmt"

	"inferproxy/pkg/types"
)

// ErrUsageUnsupported is returned by Usage when the cloud client does not
// expose account usage.
var ErrUsageUnsupported = errors.New("usage not supported by cloud backend")

// badRequestError signals a malformed inbound request for 400 mapping.
type badRequestError struct{ msg string }

func (e badRequestError) Error() string   { return e.msg }
func (e badRequestError) StatusCode() int { return 400 }

func errBadRequest(msg string) error { return badRequestError{msg: msg} }

// IsBadRequest reports whether err describes a malformed inbound request.
func IsBadRequest(err error) bool {
	var be badRequestError
	return errors.As(err, &be)
}

// exhaustedError signals that both the primary and the fallback attempt
// failed. It is the only error the gateway synthesizes itself rather than
// passing through from a backend.
type exhaustedError struct {
	primary     types.Backend
	primaryErr  error
	fallback    types.Backend
	fallbackErr error
}

func (e exhaustedError) Error() string {
	return fmt.Sprintf("all backends failed: %s: %v; %s: %v",
		e.primary, e.primaryErr, e.fallback, e.fallbackErr)
}

func (e exhaustedError) StatusCode() int { return 502 }

// ErrExhausted constructs an exhaustedError naming both failures.
func ErrExhausted(primary types.Backend, primaryErr error, fallback types.Backend, fallbackErr error) error {
	return exhaustedError{primary: primary, primaryErr: primaryErr, fallback: fallback, fallbackErr: fallbackErr}
}

// IsExhausted reports whether err indicates both backends failed.
func IsExhausted(err error) bool {
	var ee exhaustedError
	return errors.As(err, &ee)
}
