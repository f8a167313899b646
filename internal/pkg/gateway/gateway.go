// Package gateway is the boundary to the external card-processing gateway.
// Implementations translate SDK calls, SDK errors and webhook signatures into
// the values of this package and never retry on their own.
package gateway

import "context"

// Intent statuses the payment core reacts to.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

// Webhook event types the payment core handles.
const (
	EventIntentSucceeded     = "payment_intent.succeeded"
	EventIntentPaymentFailed = "payment_intent.payment_failed"
	EventIntentCanceled      = "payment_intent.canceled"
	EventDisputeCreated      = "charge.dispute.created"
)

// Gateway is implemented by the Stripe adapter and by test fakes.
type Gateway interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	// VerifyWebhook checks the signature header against secret and decodes the event.
	VerifyWebhook(payload []byte, signatureHeader, secret string) (*Event, error)
	// ParseEvent decodes an unsigned payload. Only used when no webhook secret is configured.
	ParseEvent(payload []byte) (*Event, error)
}

// IntentParams describes a payment intent to create. Amount is in minor units.
type IntentParams struct {
	Amount         int64
	Currency       string
	CustomerEmail  string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway-side view of a payment.
type Intent struct {
	ID             string `json:"id"`
	ClientSecret   string `json:"client_secret,omitempty"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PublishableKey string `json:"publishable_key,omitempty"`
	// PaymentMethodType is e.g. "card" once the customer attached a method.
	PaymentMethodType string `json:"payment_method_type,omitempty"`
	// LastError is the message of the last failed payment attempt.
	LastError string `json:"last_error,omitempty"`
}

// Event is a decoded webhook delivery.
type Event struct {
	ID     string
	Type   string
	Object EventObject
}

// EventObject carries the fields of the event's data object the core needs.
// For intent events IntentID is the object id, for disputes it is the
// intent the disputed charge belongs to (may be empty).
type EventObject struct {
	ID                string
	IntentID          string
	Status            string
	Amount            int64
	Currency          string
	PaymentMethodType string
	LastError         string
	ChargeID          string
	Reason            string
}
