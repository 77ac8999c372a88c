package greader

import (
	"errors"
	"fmt"
)

type FailureKind int

const (
	// FailureTransport means no usable HTTP response: DNS, timeout, refused
	// connection or an undecodable body.
	FailureTransport FailureKind = iota + 1
	// FailureHTTP means the server answered with a non-200 status.
	FailureHTTP
)

// StatusTransport is the status code reported for transport failures.
const StatusTransport = -1

// Error is the uniform failure value returned by every Client operation.
type Error struct {
	Op         string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == FailureHTTP {
		return fmt.Sprintf("%s: unexpected status: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) error {
	return &Error{Op: op, Kind: FailureTransport, StatusCode: StatusTransport, Err: err}
}

func httpError(op string, status int) error {
	return &Error{Op: op, Kind: FailureHTTP, StatusCode: status}
}

// StatusCode reports the HTTP status carried by err: 200 for nil,
// StatusTransport for transport failures and non-gateway errors.
func StatusCode(err error) int {
	if err == nil {
		return 200
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.StatusCode
	}
	return StatusTransport
}

// IsUnauthorized reports whether the server rejected the token.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == 401 || code == 403
}
