package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	// ConsecutiveFailures opens the circuit. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe. Defaults to 30s.
	OpenTimeout time.Duration
}

// breakerGateway fails fast with KindUnreachable while the gateway keeps
// timing out. It never retries a call.
type breakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Intent]
}

// WithBreaker wraps API calls of next in a circuit breaker. Only
// unreachable and generic gateway failures count against the circuit; card
// declines and bad requests are answers, not outages.
func WithBreaker(next Gateway, s BreakerSettings) Gateway {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*Intent](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch KindOf(err) {
			case KindUnreachable, KindOther:
				return false
			default:
				return true
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[Gateway] circuit %s: %s -> %s", name, from, to)
		},
	})

	return &breakerGateway{next: next, cb: cb}
}

func (b *breakerGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	return b.execute(func() (*Intent, error) {
		return b.next.CreateIntent(ctx, params)
	})
}

func (b *breakerGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	return b.execute(func() (*Intent, error) {
		return b.next.RetrieveIntent(ctx, intentID)
	})
}

func (b *breakerGateway) VerifyWebhook(payload []byte, signatureHeader, secret string) (*Event, error) {
	return b.next.VerifyWebhook(payload, signatureHeader, secret)
}

func (b *breakerGateway) ParseEvent(payload []byte) (*Event, error) {
	return b.next.ParseEvent(payload)
}

func (b *breakerGateway) execute(fn func() (*Intent, error)) (*Intent, error) {
	intent, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, newError(KindUnreachable, "payment gateway unreachable", err)
	}
	return intent, err
}
