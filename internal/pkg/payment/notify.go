package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event types published after a commit.
const (
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentFailed     = "payment.failed"
	EventPaymentCanceled   = "payment.canceled"
	EventOrderStateChanged = "order.state_changed"
)

// Event describes a committed change. It is only ever emitted after the
// database transaction that produced it committed.
type Event struct {
	Type                string          `json:"type"`
	OrderID             uint            `json:"order_id"`
	TransactionID       uint            `json:"transaction_id,omitempty"`
	UserID              uint            `json:"user_id"`
	Email               string          `json:"-"`
	IntentID            string          `json:"payment_intent_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency,omitempty"`
	OrderState          string          `json:"order_state,omitempty"`
	PaymentState        string          `json:"payment_state,omitempty"`
	PreviousState       string          `json:"previous_state,omitempty"`
	Reason              string          `json:"reason,omitempty"`
	PurchaseOrderNumber string          `json:"purchase_order_number,omitempty"`
	OccurredAt          time.Time       `json:"occurred_at"`
}

// Notifier receives committed events. Implementations must not block for
// long and handle their own failures; the payment outcome never depends on them.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) {}

func (s *Service) notify(ctx context.Context, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now()
	}
	s.notifier.Notify(ctx, evt)
}
