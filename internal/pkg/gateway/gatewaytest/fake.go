// Package gatewaytest provides an in-memory gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
)

// Fake is a scriptable in-memory gateway. Intents it creates start in
// requires_payment_method; tests move them with SetStatus.
type Fake struct {
	mu      sync.Mutex
	seq     int
	intents map[string]*gateway.Intent
	byKey   map[string]string

	// CreateErr and RetrieveErr, when set, are returned instead of calling through.
	CreateErr   error
	RetrieveErr error

	PublishableKey string
	CreateCalls    int
	RetrieveCalls  int
	LastParams     gateway.IntentParams
}

// NewFake creates an empty fake gateway.
func NewFake() *Fake {
	return &Fake{
		intents:        map[string]*gateway.Intent{},
		byKey:          map[string]string{},
		PublishableKey: "pk_test_fake",
	}
}

func (f *Fake) CreateIntent(_ context.Context, params gateway.IntentParams) (*gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	f.LastParams = params
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	if id, ok := f.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		cp := *f.intents[id]
		return &cp, nil
	}

	f.seq++
	id := fmt.Sprintf("pi_fake_%d", f.seq)
	intent := &gateway.Intent{
		ID:             id,
		ClientSecret:   id + "_secret",
		Status:         gateway.StatusRequiresPaymentMethod,
		Amount:         params.Amount,
		Currency:       strings.ToLower(params.Currency),
		PublishableKey: f.PublishableKey,
	}
	f.intents[id] = intent
	if params.IdempotencyKey != "" {
		f.byKey[params.IdempotencyKey] = id
	}

	cp := *intent
	return &cp, nil
}

func (f *Fake) RetrieveIntent(_ context.Context, intentID string) (*gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.RetrieveCalls++
	if f.RetrieveErr != nil {
		return nil, f.RetrieveErr
	}
	intent, ok := f.intents[intentID]
	if !ok {
		return nil, &gateway.Error{Kind: gateway.KindNotFound, Message: "payment intent not found"}
	}
	cp := *intent
	cp.ClientSecret = ""
	return &cp, nil
}

// SetStatus changes the status of a stored intent. lastError is recorded as
// the last payment error when non-empty.
func (f *Fake) SetStatus(intentID, status, lastError string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	intent, ok := f.intents[intentID]
	if !ok {
		intent = &gateway.Intent{ID: intentID}
		f.intents[intentID] = intent
	}
	intent.Status = status
	intent.LastError = lastError
	if status == gateway.StatusSucceeded && intent.PaymentMethodType == "" {
		intent.PaymentMethodType = "card"
	}
}

// VerifyWebhook accepts the header "valid" and rejects anything else.
func (f *Fake) VerifyWebhook(payload []byte, signatureHeader, _ string) (*gateway.Event, error) {
	if signatureHeader != "valid" {
		return nil, &gateway.Error{Kind: gateway.KindBadSignature, Message: "invalid webhook signature"}
	}
	return gateway.ParseEvent(payload)
}

func (f *Fake) ParseEvent(payload []byte) (*gateway.Event, error) {
	return gateway.ParseEvent(payload)
}

// IntentEvent builds a Stripe-shaped event payload for an intent.
func IntentEvent(eventID, eventType, intentID, status, lastError string) []byte {
	lastErr := "null"
	if lastError != "" {
		lastErr = fmt.Sprintf(`{"type":"card_error","message":%q}`, lastError)
	}
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":%q,"object":"payment_intent","status":%q,"amount":5000,"currency":"usd","last_payment_error":%s}}}`,
		eventID, eventType, intentID, status, lastErr,
	))
}

// DisputeEvent builds a charge.dispute.created payload.
func DisputeEvent(eventID, chargeID, intentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","type":"charge.dispute.created","data":{"object":{"id":"dp_1","object":"dispute","charge":%q,"payment_intent":%q,"amount":5000,"currency":"usd","reason":"fraudulent","status":"needs_response"}}}`,
		eventID, chargeID, intentID,
	))
}
