package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("admin", "admin@pawmart.test", "secret123", ROLE_ADMIN)
	require.NoError(t, err)

	assert.Equal(t, STATUS_ACTIVE, u.Status)
	assert.True(t, u.IsAdmin())
	assert.NotEqual(t, "secret123", u.Password)
	assert.True(t, CheckPasswordHash("secret123", u.Password))
	assert.False(t, CheckPasswordHash("wrong", u.Password))
}

func TestCreateUser_Validation(t *testing.T) {
	_, err := CreateUser("al", "not-an-email", "123", ROLE_USER)
	assert.Error(t, err)

	u, err := CreateUser("customer", "customer@pawmart.test", "secret123", ROLE_USER)
	require.NoError(t, err)
	assert.Equal(t, STATUS_INACTIVE, u.Status)
	assert.False(t, u.IsAdmin())
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, UnitPrice: decimal.RequireFromString("12.50")}
	assert.Equal(t, "37.50", item.Subtotal().StringFixed(2))
}

func TestOrderIsAwaitingPayment(t *testing.T) {
	o := Order{State: OrderStatePending, PaymentState: PaymentStatePending}
	assert.True(t, o.IsAwaitingPayment())

	o.PaymentState = PaymentStatePaid
	assert.False(t, o.IsAwaitingPayment())
}

func TestTruncatePayload(t *testing.T) {
	short := []byte(`{"id":"evt_1"}`)
	assert.Equal(t, string(short), TruncatePayload(short))

	long := make([]byte, MaxWebhookPayloadLength+100)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, TruncatePayload(long), MaxWebhookPayloadLength)
}

func TestPaymentTransactionIsTerminal(t *testing.T) {
	for _, state := range []string{TransactionStateSucceeded, TransactionStateFailed, TransactionStateCanceled} {
		tx := PaymentTransaction{State: state}
		assert.True(t, tx.IsTerminal(), state)
	}
	tx := PaymentTransaction{State: TransactionStatePending}
	assert.False(t, tx.IsTerminal())
}
