package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
	"github.com/ManuelReschke/PawMart/internal/pkg/metrics"
)

// CreateIntentInput is a request to start paying an order. Amount is in
// minor units.
type CreateIntentInput struct {
	UserID         uint
	Email          string
	OrderID        uint
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// IntentResult is returned to the client to complete the payment.
type IntentResult struct {
	IntentID       string
	ClientSecret   string
	PublishableKey string
	Amount         int64
	Currency       string
	Status         string
	TransactionID  uint
}

// CreateIntent validates the order, asks the gateway for a payment intent and
// records a pending transaction for it. Retries resolving to an intent that
// is already recorded return the stored transaction unchanged.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (*IntentResult, error) {
	repos := s.repos.WithContext(ctx)

	order, err := s.loadOrder(repos, in.OrderID, in.UserID, false)
	if err != nil {
		return nil, err
	}
	if !order.IsAwaitingPayment() {
		return nil, newError(KindInvalidOrderState, "order is not awaiting payment")
	}
	if in.Amount <= 0 {
		return nil, newError(KindInvalidAmount, "amount must be a positive number of minor units")
	}
	currency, ok := s.normalizeCurrency(in.Currency)
	if !ok {
		return nil, newError(KindUnsupportedCurrency, fmt.Sprintf("unsupported currency, use one of: %s", strings.Join(s.cfg.SupportedCurrencies, ", ")))
	}
	if err := repos.Product.CheckAvailability(order.ID); err != nil {
		return nil, fromStock(err)
	}

	amount := decimal.New(in.Amount, -2)
	if !amount.Equal(order.Total) {
		log.Warnf("[Payment] intent amount %s differs from order %d total %s", amount.StringFixed(2), order.ID, order.Total.StringFixed(2))
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.IntentParams{
		Amount:        in.Amount,
		Currency:      currency,
		CustomerEmail: in.Email,
		Description:   fmt.Sprintf("Order #%d", order.ID),
		Metadata: map[string]string{
			"order_id": strconv.FormatUint(uint64(order.ID), 10),
			"user_id":  strconv.FormatUint(uint64(in.UserID), 10),
			"email":    in.Email,
		},
		IdempotencyKey: key,
	})
	if err != nil {
		perr := fromGateway(err)
		log.Warnf("[Payment] creating intent for order %d failed: %v", order.ID, err)
		metrics.RecordPaymentOperation("create_intent", string(perr.Kind))
		return nil, perr
	}

	var tx *models.PaymentTransaction
	err = s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		created, err := r.Payment.Create(&models.PaymentTransaction{
			OrderID:         order.ID,
			UserID:          in.UserID,
			GatewayIntentID: intent.ID,
			State:           models.TransactionStatePending,
			Amount:          amount,
			Currency:        strings.ToUpper(currency),
		}, "transaction created")
		if err != nil && !errors.Is(err, repository.ErrDuplicateIntent) {
			return err
		}
		tx = created
		return nil
	})
	if err != nil {
		log.Errorf("[Payment] recording transaction for intent %s failed: %v", intent.ID, err)
		metrics.RecordPaymentOperation("create_intent", string(KindInternal))
		return nil, wrapInternal("recording payment transaction failed", err)
	}
	if tx.OrderID != order.ID || tx.UserID != in.UserID {
		return nil, newError(KindInvalidRequest, "idempotency key already used for another order")
	}

	log.Infof("[Payment] intent %s created for order %d, transaction %d", intent.ID, order.ID, tx.ID)
	metrics.RecordPaymentOperation("create_intent", "created")

	return &IntentResult{
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: intent.PublishableKey,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		Status:         intent.Status,
		TransactionID:  tx.ID,
	}, nil
}
