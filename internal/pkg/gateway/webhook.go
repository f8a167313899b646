package gateway

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// VerifyWebhook validates the Stripe-Signature header with the endpoint
// secret and decodes the event.
func (s *Stripe) VerifyWebhook(payload []byte, signatureHeader, secret string) (*Event, error) {
	if secret == "" {
		return nil, newError(KindMisconfigured, "webhook secret is not configured", nil)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, newError(KindBadSignature, "missing signature header", webhook.ErrNotSigned)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, newError(KindBadSignature, "invalid webhook signature", err)
		}
		return nil, newError(KindBadPayload, "invalid webhook payload", err)
	}
	return decodeEvent(evt)
}

// ParseEvent decodes a payload without signature verification.
func (s *Stripe) ParseEvent(payload []byte) (*Event, error) {
	return ParseEvent(payload)
}

// ParseEvent decodes a raw Stripe event payload.
func ParseEvent(payload []byte) (*Event, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, newError(KindBadPayload, "invalid webhook payload", err)
	}
	return decodeEvent(evt)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func decodeEvent(evt stripe.Event) (*Event, error) {
	if evt.ID == "" || evt.Type == "" {
		return nil, newError(KindBadPayload, "event id or type missing", nil)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, newError(KindBadPayload, "invalid payment intent object", err)
		}
		intent := toIntent(&pi)
		out.Object = EventObject{
			ID:                pi.ID,
			IntentID:          pi.ID,
			Status:            intent.Status,
			Amount:            intent.Amount,
			Currency:          intent.Currency,
			PaymentMethodType: intent.PaymentMethodType,
			LastError:         intent.LastError,
		}
	case strings.HasPrefix(out.Type, "charge.dispute."):
		var d stripe.Dispute
		if err := json.Unmarshal(evt.Data.Raw, &d); err != nil {
			return nil, newError(KindBadPayload, "invalid dispute object", err)
		}
		out.Object = EventObject{
			ID:       d.ID,
			Status:   string(d.Status),
			Amount:   d.Amount,
			Currency: string(d.Currency),
			Reason:   string(d.Reason),
		}
		if d.Charge != nil {
			out.Object.ChargeID = d.Charge.ID
			if d.Charge.PaymentIntent != nil {
				out.Object.IntentID = d.Charge.PaymentIntent.ID
			}
		}
		if d.PaymentIntent != nil && d.PaymentIntent.ID != "" {
			out.Object.IntentID = d.PaymentIntent.ID
		}
	default:
		var obj struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(evt.Data.Raw, &obj)
		out.Object.ID = obj.ID
	}
	return out, nil
}
