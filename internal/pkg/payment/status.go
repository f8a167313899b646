package payment

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
)

// Caller identifies who is asking.
type Caller struct {
	UserID  uint
	IsAdmin bool
}

// PaymentStatus is the local state of a transaction, merged with the
// gateway's view when it could be fetched.
type PaymentStatus struct {
	Transaction   *models.PaymentTransaction
	GatewayStatus string
	// Live is false when the gateway could not be reached and only local state is returned.
	Live bool
}

// OrderPaymentState aggregates an order's payment state and attempts.
type OrderPaymentState struct {
	OrderID       uint
	State         string
	PaymentState  string
	Message       string
	PaidAt        *time.Time
	Transactions  []models.PaymentTransaction
	TotalAttempts int
}

// QueryStatus returns a transaction's state to its owner or an admin. When
// live is set the gateway view is merged in; a gateway failure degrades to
// the local state.
func (s *Service) QueryStatus(ctx context.Context, caller Caller, intentID string, live bool) (*PaymentStatus, error) {
	tx, err := s.repos.WithContext(ctx).Payment.FindByIntent(intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "payment transaction not found")
		}
		return nil, wrapInternal("loading transaction failed", err)
	}
	if tx.UserID != caller.UserID && !caller.IsAdmin {
		return nil, newError(KindForbidden, "access to this payment is denied")
	}

	status := &PaymentStatus{Transaction: tx}
	if !live {
		return status, nil
	}

	intent, err := s.liveIntent(ctx, tx.GatewayIntentID)
	if err != nil {
		log.Warnf("[Payment] gateway status of %s unavailable, returning local state: %v", tx.GatewayIntentID, err)
		return status, nil
	}
	status.GatewayStatus = intent.Status
	status.Live = true
	return status, nil
}

func (s *Service) liveIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	if s.intents != nil {
		if intent, ok := s.intents.GetIntent(ctx, intentID); ok {
			return intent, nil
		}
	}
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if s.intents != nil {
		s.intents.SetIntent(ctx, intent, s.cfg.StatusCacheTTL)
	}
	return intent, nil
}

// ListTransactions returns the transactions of an order, newest first.
func (s *Service) ListTransactions(ctx context.Context, caller Caller, orderID uint) ([]models.PaymentTransaction, error) {
	repos := s.repos.WithContext(ctx)
	if _, err := s.loadOrder(repos, orderID, caller.UserID, caller.IsAdmin); err != nil {
		return nil, err
	}
	txs, err := repos.Payment.ListForOrder(orderID)
	if err != nil {
		return nil, wrapInternal("listing transactions failed", err)
	}
	return txs, nil
}

// TransactionHistory returns the state history of a transaction to its owner or an admin.
func (s *Service) TransactionHistory(ctx context.Context, caller Caller, transactionID uint) ([]models.PaymentStateHistory, error) {
	repos := s.repos.WithContext(ctx)
	tx, err := repos.Payment.GetByID(transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "payment transaction not found")
		}
		return nil, wrapInternal("loading transaction failed", err)
	}
	if tx.UserID != caller.UserID && !caller.IsAdmin {
		return nil, newError(KindForbidden, "access to this payment is denied")
	}
	rows, err := repos.Payment.History(tx.ID)
	if err != nil {
		return nil, wrapInternal("loading history failed", err)
	}
	return rows, nil
}

// OrderPaymentState returns the aggregate payment view of an order.
func (s *Service) OrderPaymentState(ctx context.Context, caller Caller, orderID uint) (*OrderPaymentState, error) {
	repos := s.repos.WithContext(ctx)
	order, err := s.loadOrder(repos, orderID, caller.UserID, caller.IsAdmin)
	if err != nil {
		return nil, err
	}
	txs, err := repos.Payment.ListForOrder(orderID)
	if err != nil {
		return nil, wrapInternal("listing transactions failed", err)
	}
	return &OrderPaymentState{
		OrderID:       order.ID,
		State:         order.State,
		PaymentState:  order.PaymentState,
		Message:       PaymentStateMessage(order.PaymentState),
		PaidAt:        order.PaidAt,
		Transactions:  txs,
		TotalAttempts: len(txs),
	}, nil
}
