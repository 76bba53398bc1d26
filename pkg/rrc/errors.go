package rrc

import (
	"errors"
	"fmt"

	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
)

// State is a handshake controller state.
type State int

const (
	StateAwaitingRequest State = iota
	StateValidating
	StateAwaitingComplete
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting-request"
	case StateValidating:
		return "validating"
	case StateAwaitingComplete:
		return "awaiting-complete"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Reason is why a handshake ended in StateFailed.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonTransport Reason = "transport-error"
	ReasonDecode    Reason = "decode-error"
	ReasonEncode    Reason = "encode-error"
)

var (
	ErrTransport = errors.New("rrc: transport error")
	ErrDecode    = errors.New("rrc: decode error")
	ErrEncode    = errors.New("rrc: encode error")

	// ErrEmptyMessage is returned for a zero-length receive.
	ErrEmptyMessage = errors.New("rrc: empty message")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonTransport:
		return ErrTransport
	case ReasonDecode:
		return ErrDecode
	case ReasonEncode:
		return ErrEncode
	default:
		return nil
	}
}

// HandshakeError records the state a handshake failed in and why.
// errors.Is matches both the reason sentinel (ErrTransport, ErrDecode,
// ErrEncode) and anything in the cause chain.
type HandshakeError struct {
	State  State
	Reason Reason
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("rrc: %s in state %s: %v", e.Reason, e.State, e.Err)
}

func (e *HandshakeError) Unwrap() []error {
	if s := e.Reason.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// Timeout reports whether the failure was an expired I/O deadline.
func (e *HandshakeError) Timeout() bool {
	return e.Reason == ReasonTransport && transport.IsTimeout(e.Err)
}

// AsHandshakeError unwraps err to a *HandshakeError if it holds one.
func AsHandshakeError(err error) (*HandshakeError, bool) {
	var he *HandshakeError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
