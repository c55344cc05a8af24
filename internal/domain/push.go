package domain

import "fmt"

// PushStatus classifies the outcome of one push attempt.
type PushStatus int

const (
	// PushOK means the payload was handed to the connection.
	PushOK PushStatus = iota
	// PushGone means the transport reports the connection no longer exists.
	PushGone
	// PushTransportError covers every other failure.
	PushTransportError
)

// String implements fmt.Stringer.
func (s PushStatus) String() string {
	switch s {
	case PushOK:
		return "ok"
	case PushGone:
		return "gone"
	case PushTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("PushStatus(%d)", int(s))
	}
}

// PushResult is the outcome of NotificationGateway.PushTo. Err is set only
// for PushTransportError.
type PushResult struct {
	Status PushStatus
	Err    error
}

// Delivered returns a successful result.
func Delivered() PushResult { return PushResult{Status: PushOK} }

// Gone returns a result for a connection that no longer exists.
func Gone() PushResult { return PushResult{Status: PushGone} }

// TransportFailure wraps err as a non-Gone push failure.
func TransportFailure(err error) PushResult {
	return PushResult{Status: PushTransportError, Err: err}
}
