package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
)

// Email templates rendered by the notification worker.
const (
	TemplatePaymentConfirmed   = "payment_confirmed"
	TemplatePaymentFailed      = "payment_failed"
	TemplateOrderStatusChanged = "order_status_changed"
)

// EmailMessage is the payload consumed from the email queue.
type EmailMessage struct {
	RequestID string                 `json:"requestId"`
	To        string                 `json:"to"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// Notifier turns committed payment events into an email message and a
// domain event on the payment exchange. Failures are only logged.
type Notifier struct {
	pub     Publisher
	cfg     Config
	timeout time.Duration
}

func NewNotifier(pub Publisher, cfg Config) *Notifier {
	return &Notifier{pub: pub, cfg: cfg, timeout: 5 * time.Second}
}

func (n *Notifier) Notify(ctx context.Context, evt payment.Event) {
	// the request may already be finished, publishing must not be canceled with it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if body, err := json.Marshal(evt); err == nil {
		if err := n.pub.Publish(ctx, n.cfg.PaymentExchange, evt.Type, body); err != nil {
			log.Errorf("[Bus] publishing %s for order %d failed: %v", evt.Type, evt.OrderID, err)
		}
	}

	msg, ok := emailFor(evt)
	if !ok {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := n.pub.Publish(ctx, "", n.cfg.EmailQueue, body); err != nil {
		log.Errorf("[Bus] queueing %s email for order %d failed: %v", msg.Template, evt.OrderID, err)
		return
	}
	log.Infof("[Bus] queued %s email for order %d, requestId %s", msg.Template, evt.OrderID, msg.RequestID)
}

// emailFor builds the customer email of an event. Canceled payments and
// events without a recipient send no email.
func emailFor(evt payment.Event) (*EmailMessage, bool) {
	if evt.Email == "" {
		return nil, false
	}
	msg := &EmailMessage{
		RequestID: uuid.NewString(),
		To:        evt.Email,
		Timestamp: evt.OccurredAt.UTC().Format(time.RFC3339),
		Context: map[string]interface{}{
			"order_id": evt.OrderID,
			"amount":   evt.Amount.StringFixed(2),
			"currency": evt.Currency,
		},
	}
	switch evt.Type {
	case payment.EventPaymentSucceeded:
		msg.Template = TemplatePaymentConfirmed
		msg.Subject = fmt.Sprintf("Payment confirmed for order #%d", evt.OrderID)
		msg.Context["purchase_order_number"] = evt.PurchaseOrderNumber
		msg.Context["transaction_id"] = evt.TransactionID
	case payment.EventPaymentFailed:
		msg.Template = TemplatePaymentFailed
		msg.Subject = fmt.Sprintf("Payment failed for order #%d", evt.OrderID)
		msg.Context["reason"] = evt.Reason
	case payment.EventOrderStateChanged:
		msg.Template = TemplateOrderStatusChanged
		msg.Subject = fmt.Sprintf("Order #%d is now %s", evt.OrderID, evt.OrderState)
		msg.Context["previous_state"] = evt.PreviousState
		msg.Context["state"] = evt.OrderState
		msg.Context["reason"] = evt.Reason
	default:
		return nil, false
	}
	return msg, true
}
