package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
)

type published struct {
	exchange   string
	routingKey string
	body       []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{exchange, routingKey, body})
	return nil
}

var testCfg = Config{EmailQueue: "email.notifications", PaymentExchange: "payments_exchange"}

func succeededEvent() payment.Event {
	return payment.Event{
		Type:                payment.EventPaymentSucceeded,
		OrderID:             100,
		TransactionID:       7,
		UserID:              1,
		Email:               "customer@pawmart.test",
		IntentID:            "pi_1",
		Amount:              decimal.RequireFromString("50"),
		Currency:            "USD",
		PurchaseOrderNumber: "PO-20261017-00100",
		OccurredAt:          time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifier_PublishesEventAndEmail(t *testing.T) {
	pub := &recordingPublisher{}
	NewNotifier(pub, testCfg).Notify(context.Background(), succeededEvent())

	require.Len(t, pub.msgs, 2)

	domain := pub.msgs[0]
	assert.Equal(t, "payments_exchange", domain.exchange)
	assert.Equal(t, payment.EventPaymentSucceeded, domain.routingKey)
	assert.NotContains(t, string(domain.body), "customer@pawmart.test", "domain events carry no email address")

	email := pub.msgs[1]
	assert.Equal(t, "", email.exchange)
	assert.Equal(t, "email.notifications", email.routingKey)

	var msg EmailMessage
	require.NoError(t, json.Unmarshal(email.body, &msg))
	assert.Equal(t, "customer@pawmart.test", msg.To)
	assert.Equal(t, TemplatePaymentConfirmed, msg.Template)
	assert.Equal(t, "Payment confirmed for order #100", msg.Subject)
	assert.Equal(t, "2026-10-17T12:00:00Z", msg.Timestamp)
	assert.Equal(t, "50.00", msg.Context["amount"])
	assert.Equal(t, "PO-20261017-00100", msg.Context["purchase_order_number"])
	assert.NotEmpty(t, msg.RequestID)
}

func TestNotifier_TemplatesPerEvent(t *testing.T) {
	tests := []struct {
		eventType string
		template  string
	}{
		{payment.EventPaymentSucceeded, TemplatePaymentConfirmed},
		{payment.EventPaymentFailed, TemplatePaymentFailed},
		{payment.EventOrderStateChanged, TemplateOrderStatusChanged},
		{payment.EventPaymentCanceled, ""},
	}
	for _, tc := range tests {
		t.Run(tc.eventType, func(t *testing.T) {
			evt := succeededEvent()
			evt.Type = tc.eventType
			msg, ok := emailFor(evt)
			if tc.template == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.template, msg.Template)
		})
	}
}

func TestNotifier_NoRecipientNoEmail(t *testing.T) {
	pub := &recordingPublisher{}
	evt := succeededEvent()
	evt.Email = ""
	NewNotifier(pub, testCfg).Notify(context.Background(), evt)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "payments_exchange", pub.msgs[0].exchange)
}

func TestNotifier_PublishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("connection refused")}
	assert.NotPanics(t, func() {
		NewNotifier(pub, testCfg).Notify(context.Background(), succeededEvent())
	})
}
