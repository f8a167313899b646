package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
	"github.com/ManuelReschke/PawMart/internal/pkg/metrics"
)

// errTransactionRaced means another scope moved the transaction out of
// pending first. The scope rolls back and the caller re-reads.
var errTransactionRaced = errors.New("transaction left pending concurrently")

// ConfirmInput identifies the payment a client claims to have completed.
type ConfirmInput struct {
	UserID   uint
	OrderID  uint
	IntentID string
}

// ConfirmResult describes a succeeded payment.
type ConfirmResult struct {
	OrderID             uint
	TransactionID       uint
	IntentID            string
	ConfirmedAt         time.Time
	PurchaseOrderNumber string
	// AlreadyConfirmed is true when this call changed nothing.
	AlreadyConfirmed bool
}

// PurchaseOrderNumber derives the purchase order number of a paid order
// from its confirmation date (UTC) and id.
func PurchaseOrderNumber(orderID uint, confirmedAt time.Time) string {
	return fmt.Sprintf("PO-%s-%05d", confirmedAt.UTC().Format("20060102"), orderID)
}

// Confirm checks the intent with the gateway and, when it succeeded, marks
// the transaction succeeded, the order paid and deducts stock in a single
// database transaction. Confirming an already succeeded transaction is a no-op.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	repos := s.repos.WithContext(ctx)

	tx, err := repos.Payment.FindByIntent(in.IntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "payment transaction not found")
		}
		return nil, wrapInternal("loading transaction failed", err)
	}
	if tx.UserID != in.UserID {
		log.Warnf("[Payment] user %d tried to confirm transaction %d of user %d", in.UserID, tx.ID, tx.UserID)
		return nil, newError(KindForbidden, "access to this payment is denied")
	}
	if in.OrderID != 0 && tx.OrderID != in.OrderID {
		return nil, newError(KindNotFound, "payment transaction not found for this order")
	}

	if tx.State == models.TransactionStateSucceeded {
		metrics.RecordPaymentOperation("confirm", "already_confirmed")
		return confirmedResult(tx, true), nil
	}
	if tx.IsTerminal() {
		return nil, newError(KindNotConfirmed, fmt.Sprintf("payment attempt is %s, create a new payment", tx.State))
	}

	intent, err := s.gateway.RetrieveIntent(ctx, tx.GatewayIntentID)
	if err != nil {
		perr := fromGateway(err)
		log.Warnf("[Payment] retrieving intent %s failed: %v", tx.GatewayIntentID, err)
		metrics.RecordPaymentOperation("confirm", string(perr.Kind))
		return nil, perr
	}

	switch {
	case intent.Status == gateway.StatusSucceeded:
	case intent.Status == gateway.StatusCanceled:
		s.closeTransaction(ctx, tx, models.TransactionStateCanceled, "intent canceled at gateway", "")
		metrics.RecordPaymentOperation("confirm", "canceled")
		return nil, newError(KindNotConfirmed, "payment was canceled")
	case intent.Status == gateway.StatusRequiresPaymentMethod && intent.LastError != "":
		s.closeTransaction(ctx, tx, models.TransactionStateFailed, "payment failed", intent.LastError)
		metrics.RecordPaymentOperation("confirm", "failed")
		return nil, newError(KindNotConfirmed, "payment failed: "+intent.LastError)
	default:
		metrics.RecordPaymentOperation("confirm", string(KindNotConfirmed))
		return nil, newError(KindNotConfirmed, fmt.Sprintf("payment not confirmed (status: %s)", intent.Status))
	}

	res, err := s.applySuccess(ctx, tx.ID, intent.PaymentMethodType, "payment confirmed by client")
	if err != nil {
		metrics.RecordPaymentOperation("confirm", string(KindOf(err)))
		return nil, err
	}
	if res.AlreadyConfirmed {
		metrics.RecordPaymentOperation("confirm", "already_confirmed")
	} else {
		metrics.RecordPaymentOperation("confirm", "succeeded")
	}
	return res, nil
}

func confirmedResult(tx *models.PaymentTransaction, already bool) *ConfirmResult {
	res := &ConfirmResult{
		OrderID:          tx.OrderID,
		TransactionID:    tx.ID,
		IntentID:         tx.GatewayIntentID,
		AlreadyConfirmed: already,
	}
	if tx.ConfirmedAt != nil {
		res.ConfirmedAt = *tx.ConfirmedAt
		res.PurchaseOrderNumber = PurchaseOrderNumber(tx.OrderID, *tx.ConfirmedAt)
	}
	return res
}

// applySuccess is the success scope shared by client confirmation and the
// succeeded webhook. The transaction is claimed first so a racing scope on
// the same intent fails its guarded update and ends up idempotent.
func (s *Service) applySuccess(ctx context.Context, txID uint, method, reason string) (*ConfirmResult, error) {
	var (
		updated *models.PaymentTransaction
		already *models.PaymentTransaction
		order   *models.Order
	)
	now := s.now()

	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		t, err := r.Payment.GetByID(txID)
		if err != nil {
			return err
		}
		if t.State == models.TransactionStateSucceeded {
			already = t
			return nil
		}
		if !CanTransitionTransaction(t.State, models.TransactionStateSucceeded) {
			return newError(KindNotConfirmed, fmt.Sprintf("payment attempt is %s", t.State))
		}

		// at most one succeeded transaction per order
		other, err := r.Payment.FindSucceededForOrder(t.OrderID)
		switch {
		case err == nil:
			log.Errorf("[Payment] order %d already paid by transaction %d, refusing transaction %d", t.OrderID, other.ID, t.ID)
			return newError(KindInvalidOrderState, "order already has a succeeded payment")
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		o, err := r.Order.GetByID(t.OrderID)
		if err != nil {
			return err
		}
		if !o.IsAwaitingPayment() {
			return newError(KindInvalidOrderState, "order is no longer awaiting payment")
		}

		change := repository.StateChange{
			To:          models.TransactionStateSucceeded,
			Reason:      reason,
			ConfirmedAt: &now,
		}
		if method != "" {
			change.Method = &method
		}
		updated, err = r.Payment.UpdateState(t.ID, models.TransactionStatePending, change)
		if errors.Is(err, repository.ErrStaleState) {
			return errTransactionRaced
		}
		if err != nil {
			return err
		}

		if err := r.Product.CheckAvailability(o.ID); err != nil {
			return err
		}
		if err := r.Product.DeductForOrder(o.ID); err != nil {
			return err
		}

		err = r.Order.SetStates(o.ID,
			repository.OrderStates{State: models.OrderStatePending, PaymentState: models.PaymentStatePending},
			repository.OrderStates{State: models.OrderStatePaid, PaymentState: models.PaymentStatePaid},
			&now,
		)
		if errors.Is(err, repository.ErrStaleState) {
			return newError(KindInvalidOrderState, "order is no longer awaiting payment")
		}
		if err != nil {
			return err
		}
		order = o
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errTransactionRaced):
		t, rerr := s.repos.WithContext(ctx).Payment.GetByID(txID)
		if rerr != nil {
			return nil, wrapInternal("reloading transaction failed", rerr)
		}
		if t.State == models.TransactionStateSucceeded {
			return confirmedResult(t, true), nil
		}
		return nil, newError(KindNotConfirmed, fmt.Sprintf("payment attempt is %s", t.State))
	case errors.Is(err, repository.ErrInsufficientStock):
		log.Warnf("[Payment] transaction %d not confirmed: %v", txID, err)
		return nil, fromStock(err)
	default:
		var perr *Error
		if errors.As(err, &perr) {
			return nil, perr
		}
		log.Errorf("[Payment] success scope for transaction %d failed: %v", txID, err)
		return nil, wrapInternal("confirming payment failed", err)
	}

	if already != nil {
		return confirmedResult(already, true), nil
	}

	if s.intents != nil {
		s.intents.DeleteIntent(ctx, updated.GatewayIntentID)
	}

	res := confirmedResult(updated, false)
	log.Infof("[Payment] transaction %d succeeded, order %d paid (%s)", updated.ID, order.ID, res.PurchaseOrderNumber)
	s.notify(ctx, Event{
		Type:                EventPaymentSucceeded,
		OrderID:             order.ID,
		TransactionID:       updated.ID,
		UserID:              updated.UserID,
		Email:               s.userEmail(ctx, updated.UserID),
		IntentID:            updated.GatewayIntentID,
		Amount:              updated.Amount,
		Currency:            updated.Currency,
		OrderState:          models.OrderStatePaid,
		PaymentState:        models.PaymentStatePaid,
		PreviousState:       models.TransactionStatePending,
		PurchaseOrderNumber: res.PurchaseOrderNumber,
		OccurredAt:          now,
	})
	return res, nil
}

// closeTransaction moves a pending transaction to failed or canceled. A
// transaction that already left pending is left alone. Errors are logged:
// the caller answers with the gateway outcome regardless.
func (s *Service) closeTransaction(ctx context.Context, tx *models.PaymentTransaction, to, reason, details string) bool {
	if !CanTransitionTransaction(tx.State, to) {
		log.Infof("[Payment] transaction %d is %s, not marking %s", tx.ID, tx.State, to)
		return false
	}
	change := repository.StateChange{To: to, Reason: reason}
	if details != "" {
		change.ErrorDetails = &details
	}

	var updated *models.PaymentTransaction
	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		var err error
		updated, err = r.Payment.UpdateState(tx.ID, models.TransactionStatePending, change)
		return err
	})
	if errors.Is(err, repository.ErrStaleState) {
		log.Infof("[Payment] transaction %d already left pending, not marking %s", tx.ID, to)
		return false
	}
	if err != nil {
		log.Errorf("[Payment] marking transaction %d %s failed: %v", tx.ID, to, err)
		return false
	}

	if s.intents != nil {
		s.intents.DeleteIntent(ctx, updated.GatewayIntentID)
	}

	evtType := EventPaymentFailed
	if to == models.TransactionStateCanceled {
		evtType = EventPaymentCanceled
	}
	log.Infof("[Payment] transaction %d marked %s", updated.ID, to)
	s.notify(ctx, Event{
		Type:          evtType,
		OrderID:       updated.OrderID,
		TransactionID: updated.ID,
		UserID:        updated.UserID,
		Email:         s.userEmail(ctx, updated.UserID),
		IntentID:      updated.GatewayIntentID,
		Amount:        updated.Amount,
		Currency:      updated.Currency,
		PaymentState:  models.PaymentStatePending,
		PreviousState: models.TransactionStatePending,
		Reason:        details,
	})
	return true
}
