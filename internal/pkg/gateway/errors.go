package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures.
type Kind int

const (
	KindOther Kind = iota
	KindCardDeclined
	KindInvalidRequest
	KindRateLimited
	KindUnreachable
	KindMisconfigured
	KindNotFound
	KindBadSignature
	KindBadPayload
)

func (k Kind) String() string {
	switch k {
	case KindCardDeclined:
		return "card_declined"
	case KindInvalidRequest:
		return "invalid_request"
	case KindRateLimited:
		return "rate_limited"
	case KindUnreachable:
		return "unreachable"
	case KindMisconfigured:
		return "misconfigured"
	case KindNotFound:
		return "not_found"
	case KindBadSignature:
		return "bad_signature"
	case KindBadPayload:
		return "bad_payload"
	default:
		return "gateway_error"
	}
}

// Error is the only error type returned by gateway implementations.
type Error struct {
	Kind    Kind
	Message string
	// Param is the offending request parameter for KindInvalidRequest.
	Param string
	Err   error
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("gateway %s (%s): %s", e.Kind, e.Param, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a gateway error, or KindOther for foreign errors.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindOther
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
