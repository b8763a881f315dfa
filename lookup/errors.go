package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a lookup failed.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindServerError Kind = "server_error"
	KindMalformed   Kind = "malformed"
	KindTimeout     Kind = "timeout"
)

// Error is returned by every lookup client. A single failed attempt is final;
// clients never retry.
type Error struct {
	Op     string
	Kind   Kind
	Status int // set for KindServerError
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindServerError {
		return fmt.Sprintf("%s: server error (status %d)", e.Op, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of a lookup error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind, true
	}
	return "", false
}

func networkError(op string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func serverError(op string, status int) *Error {
	return &Error{Op: op, Kind: KindServerError, Status: status}
}

func malformed(op string, err error) *Error {
	return &Error{Op: op, Kind: KindMalformed, Err: err}
}
