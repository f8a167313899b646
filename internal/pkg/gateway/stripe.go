package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const defaultTimeout = 15 * time.Second

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	// Timeout bounds every API call. A timed out call maps to KindUnreachable.
	Timeout time.Duration
	// URL overrides the API base URL, used by tests.
	URL string
}

// Stripe implements Gateway on top of stripe-go. It holds no mutable state
// and is safe for concurrent use.
type Stripe struct {
	api            *client.API
	secretKey      string
	publishableKey string
}

// NewStripe creates a Stripe gateway with network retries disabled.
func NewStripe(cfg StripeConfig) *Stripe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.URL != "" {
		backendCfg.URL = stripe.String(cfg.URL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
	})

	return &Stripe{
		api:            api,
		secretKey:      cfg.SecretKey,
		publishableKey: cfg.PublishableKey,
	}
}

// CreateIntent creates a payment intent with automatic payment methods.
func (s *Stripe) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	if s.secretKey == "" {
		return nil, newError(KindMisconfigured, "gateway secret key is not configured", nil)
	}
	if p.Amount <= 0 {
		return nil, &Error{Kind: KindInvalidRequest, Message: "amount must be positive", Param: "amount"}
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	params.Context = ctx

	log.Infof("[Gateway] creating payment intent: amount=%d %s", p.Amount, strings.ToLower(p.Currency))
	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}

	intent := toIntent(pi)
	intent.PublishableKey = s.publishableKey
	return intent, nil
}

// RetrieveIntent fetches the current state of an intent, expanding its payment method.
func (s *Stripe) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	if s.secretKey == "" {
		return nil, newError(KindMisconfigured, "gateway secret key is not configured", nil)
	}
	if strings.TrimSpace(intentID) == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: "payment intent id is required", Param: "id"}
	}

	params := &stripe.PaymentIntentParams{}
	params.AddExpand("payment_method")
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.PaymentMethod != nil && pi.PaymentMethod.Type != "" {
		intent.PaymentMethodType = string(pi.PaymentMethod.Type)
	}
	if pi.LastPaymentError != nil {
		intent.LastError = lastErrorMessage(pi.LastPaymentError)
	}
	return intent
}

func lastErrorMessage(e *stripe.Error) string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.DeclineCode != "" {
		return string(e.DeclineCode)
	}
	return string(e.Code)
}

// mapStripeError turns any error returned by stripe-go into *Error. Errors
// that are not *stripe.Error never reached the API (network, timeout).
func mapStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		log.Warnf("[Gateway] gateway unreachable: %v", err)
		return newError(KindUnreachable, "payment gateway unreachable", err)
	}

	switch {
	case serr.HTTPStatusCode == http.StatusUnauthorized || serr.HTTPStatusCode == http.StatusForbidden:
		log.Errorf("[Gateway] authentication with gateway failed (status %d)", serr.HTTPStatusCode)
		return newError(KindMisconfigured, "gateway authentication failed", err)
	case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.Code == stripe.ErrorCodeRateLimit:
		return newError(KindRateLimited, "too many requests to the payment gateway", err)
	case serr.Type == stripe.ErrorTypeCard:
		msg := serr.Msg
		if msg == "" {
			msg = "card declined"
		}
		return newError(KindCardDeclined, msg, err)
	case serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripe.ErrorCodeResourceMissing:
		return newError(KindNotFound, "payment intent not found", err)
	case serr.Type == stripe.ErrorTypeInvalidRequest:
		return &Error{Kind: KindInvalidRequest, Message: serr.Msg, Param: serr.Param, Err: err}
	default:
		log.Errorf("[Gateway] gateway error: type=%s status=%d code=%s", serr.Type, serr.HTTPStatusCode, serr.Code)
		return newError(KindOther, "payment gateway error", err)
	}
}
