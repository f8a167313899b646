package payment

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
)

// Kind classifies payment core failures. Each kind maps to exactly one HTTP status.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindInvalidAmount        Kind = "invalid_amount"
	KindUnsupportedCurrency  Kind = "unsupported_currency"
	KindInvalidOrderState    Kind = "invalid_order_state"
	KindInvalidTransition    Kind = "invalid_transition"
	KindInvalidRequest       Kind = "invalid_request"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindCardDeclined         Kind = "card_declined"
	KindNotConfirmed         Kind = "not_confirmed"
	KindRateLimited          Kind = "rate_limited"
	KindUnreachable          Kind = "unreachable"
	KindBadSignature         Kind = "bad_signature"
	KindBadPayload           Kind = "bad_payload"
	KindGatewayError         Kind = "gateway_error"
	KindGatewayMisconfigured Kind = "gateway_misconfigured"
	KindInternal             Kind = "internal_error"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden, KindBadSignature:
		return fiber.StatusForbidden
	case KindInvalidAmount, KindUnsupportedCurrency, KindInvalidOrderState, KindInvalidTransition,
		KindInvalidRequest, KindInsufficientStock, KindNotConfirmed, KindBadPayload:
		return fiber.StatusBadRequest
	case KindCardDeclined:
		return fiber.StatusPaymentRequired
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindUnreachable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// PublicMessage is the message safe to show to a client. 500-class errors
// never expose their details.
func PublicMessage(err error) string {
	var perr *Error
	if !errors.As(err, &perr) {
		return "internal error"
	}
	switch perr.Kind {
	case KindGatewayError, KindGatewayMisconfigured:
		return "payment gateway error, please try again later"
	case KindInternal:
		return "internal error"
	default:
		return perr.Message
	}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// fromGateway translates a gateway error into the payment taxonomy.
func fromGateway(err error) *Error {
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		return &Error{Kind: KindGatewayError, Message: "payment gateway error", Err: err}
	}

	switch gerr.Kind {
	case gateway.KindCardDeclined:
		return &Error{Kind: KindCardDeclined, Message: "card declined: " + gerr.Message, Err: err}
	case gateway.KindInvalidRequest:
		msg := "invalid payment request"
		if gerr.Param != "" {
			msg += ": " + gerr.Param
		}
		return &Error{Kind: KindInvalidRequest, Message: msg, Err: err}
	case gateway.KindRateLimited:
		return &Error{Kind: KindRateLimited, Message: "payment gateway is busy, please retry shortly", Err: err}
	case gateway.KindUnreachable:
		return &Error{Kind: KindUnreachable, Message: "payment gateway unreachable, please try again later", Err: err}
	case gateway.KindMisconfigured:
		return &Error{Kind: KindGatewayMisconfigured, Message: "payment gateway misconfigured", Err: err}
	case gateway.KindNotFound:
		return &Error{Kind: KindNotFound, Message: "payment intent not found", Err: err}
	case gateway.KindBadSignature:
		return &Error{Kind: KindBadSignature, Message: "invalid webhook signature", Err: err}
	case gateway.KindBadPayload:
		return &Error{Kind: KindBadPayload, Message: "invalid webhook payload", Err: err}
	default:
		return &Error{Kind: KindGatewayError, Message: "payment gateway error", Err: err}
	}
}

// fromStock converts a repository stock shortage into KindInsufficientStock.
func fromStock(err error) *Error {
	var serr *repository.StockError
	if errors.As(err, &serr) {
		return &Error{
			Kind:    KindInsufficientStock,
			Message: fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", serr.ProductID, serr.Needed, serr.Available),
			Err:     err,
		}
	}
	return wrapInternal("stock check failed", err)
}
