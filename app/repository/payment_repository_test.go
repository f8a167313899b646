package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/internal/pkg/testutil"
)

func newPendingTx(orderID uint, intent string) *models.PaymentTransaction {
	return &models.PaymentTransaction{
		OrderID:         orderID,
		UserID:          1,
		GatewayIntentID: intent,
		State:           models.TransactionStatePending,
		Amount:          decimal.RequireFromString("50.00"),
		Currency:        "USD",
	}
}

func seedOrder(t *testing.T) *gorm.DB {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, models.ROLE_USER)
	testutil.SeedProduct(t, db, 1, 10, "50.00")
	testutil.SeedOrder(t, db, 100, 1, testutil.Item{ProductID: 1, Quantity: 1, UnitPrice: "50.00"})
	return db
}

func TestPaymentRepository_CreateWritesInitialHistory(t *testing.T) {
	db := seedOrder(t)
	repo := NewPaymentRepository(db)

	tx, err := repo.Create(newPendingTx(100, "pi_1"), "transaction created")
	require.NoError(t, err)
	require.NotZero(t, tx.ID)

	history, err := repo.History(tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].PreviousState)
	assert.Equal(t, models.TransactionStatePending, history[0].NewState)
	require.NotNil(t, history[0].Reason)
	assert.Equal(t, "transaction created", *history[0].Reason)
}

func TestPaymentRepository_CreateDuplicateIntent(t *testing.T) {
	db := seedOrder(t)
	repo := NewPaymentRepository(db)

	first, err := repo.Create(newPendingTx(100, "pi_1"), "transaction created")
	require.NoError(t, err)

	again, err := repo.Create(newPendingTx(100, "pi_1"), "transaction created")
	assert.ErrorIs(t, err, ErrDuplicateIntent)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.PaymentTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPaymentRepository_CreateLosesInsertRace(t *testing.T) {
	db := seedOrder(t).Session(&gorm.Session{SkipDefaultTransaction: true})
	repo := NewPaymentRepository(db)

	// another request inserts the same intent between the lookup and the insert
	var competitor *models.PaymentTransaction
	err := db.Callback().Create().Before("gorm:create").Register("test:competing_insert", func(tx *gorm.DB) {
		if competitor != nil || tx.Statement.Table != "payment_transactions" {
			return
		}
		competitor = newPendingTx(100, "pi_race")
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Create(competitor).Error)
	})
	require.NoError(t, err)

	got, err := repo.Create(newPendingTx(100, "pi_race"), "transaction created")
	assert.ErrorIs(t, err, ErrDuplicateIntent)
	require.NotNil(t, got)
	require.NotNil(t, competitor)
	assert.Equal(t, competitor.ID, got.ID)

	var count int64
	require.NoError(t, db.Model(&models.PaymentTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPaymentRepository_UpdateStateIsGuarded(t *testing.T) {
	db := seedOrder(t)
	repo := NewPaymentRepository(db)

	tx, err := repo.Create(newPendingTx(100, "pi_1"), "transaction created")
	require.NoError(t, err)

	now := time.Now()
	method := "card"
	updated, err := repo.UpdateState(tx.ID, models.TransactionStatePending, StateChange{
		To:          models.TransactionStateSucceeded,
		Reason:      "confirmed",
		Method:      &method,
		ConfirmedAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStateSucceeded, updated.State)
	require.NotNil(t, updated.Method)
	assert.Equal(t, "card", *updated.Method)
	assert.NotNil(t, updated.ConfirmedAt)

	_, err = repo.UpdateState(tx.ID, models.TransactionStatePending, StateChange{To: models.TransactionStateFailed})
	assert.ErrorIs(t, err, ErrStaleState)

	history, err := repo.History(tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 2, "a rejected update must not append history")
	require.NotNil(t, history[1].PreviousState)
	assert.Equal(t, models.TransactionStatePending, *history[1].PreviousState)
	assert.Equal(t, models.TransactionStateSucceeded, history[1].NewState)

	found, err := repo.FindSucceededForOrder(100)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)
}

func TestPaymentRepository_ListForOrderNewestFirst(t *testing.T) {
	db := seedOrder(t)
	repo := NewPaymentRepository(db)

	_, err := repo.Create(newPendingTx(100, "pi_1"), "")
	require.NoError(t, err)
	second, err := repo.Create(newPendingTx(100, "pi_2"), "")
	require.NoError(t, err)

	txs, err := repo.ListForOrder(100)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)

	_, err = repo.FindByIntent("pi_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_SetStatesIsGuarded(t *testing.T) {
	db := seedOrder(t)
	repo := NewOrderRepository(db)

	pending := OrderStates{State: models.OrderStatePending, PaymentState: models.PaymentStatePending}
	paid := OrderStates{State: models.OrderStatePaid, PaymentState: models.PaymentStatePaid}
	now := time.Now()

	require.NoError(t, repo.SetStates(100, pending, paid, &now))
	assert.ErrorIs(t, repo.SetStates(100, pending, paid, &now), ErrStaleState)

	order, err := repo.GetByID(100)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatePaid, order.State)
	assert.Equal(t, models.PaymentStatePaid, order.PaymentState)
	assert.NotNil(t, order.PaidAt)

	items, err := repo.GetItems(100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "50.00", items[0].Subtotal().StringFixed(2))

	orders, err := repo.ListForUser(1, 0, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 1)
}

func TestWebhookEventRepository_Dedup(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWebhookEventRepository(db)

	created, stored, err := repo.CreateIfNotExists(&models.PaymentWebhookEvent{ExternalEventID: "evt_1", EventType: "payment_intent.succeeded", Payload: "{}"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, stored.Processed)

	txID := uint(7)
	require.NoError(t, repo.MarkProcessed(stored.ID, WebhookOutcome{Processed: true, TransactionID: &txID, Result: "ok"}))

	created, again, err := repo.CreateIfNotExists(&models.PaymentWebhookEvent{ExternalEventID: "evt_1", EventType: "payment_intent.succeeded", Payload: "{}"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, again.ID)
	assert.True(t, again.Processed)
	require.NotNil(t, again.TransactionID)
	assert.Equal(t, txID, *again.TransactionID)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	events, err := repo.List(0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
