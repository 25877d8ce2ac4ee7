package inference

import (
	"errors"
	"fmt"
)

// Kind classifies why a decision request produced no decision.
type Kind int

const (
	KindNone        Kind = iota
	KindUnreachable      // connection, DNS or credential failure
	KindTimeout          // no response within the request timeout
	KindBadStatus        // non-2xx status
	KindMalformed        // body did not parse into a decision
	KindEmpty            // parsed, but no command carried an action
	KindCanceled         // caller canceled the request
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindBadStatus:
		return "bad_status"
	case KindMalformed:
		return "malformed_response"
	case KindEmpty:
		return "empty_decision"
	case KindCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// Error is returned by RequestDecision for every failure.
type Error struct {
	Kind   Kind
	Status int // set for KindBadStatus
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindBadStatus && e.Err != nil:
		return fmt.Sprintf("inference: %s %d: %v", e.Kind, e.Status, e.Err)
	case e.Kind == KindBadStatus:
		return fmt.Sprintf("inference: %s %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("inference: %s: %v", e.Kind, e.Err)
	default:
		return "inference: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindNone
}

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
