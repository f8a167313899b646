package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/metrics"
)

// TransitionOrderState moves an order's business state along the state
// graph. Only payment confirmation may mark an order paid, so Paid is
// rejected here. Canceling a pending order cancels its payment state;
// canceling a paid or shipped order gives its stock back while the payment
// state stays Paid.
func (s *Service) TransitionOrderState(ctx context.Context, orderID uint, to, reason string) (*models.Order, error) {
	order, err := s.loadOrder(s.repos.WithContext(ctx), orderID, 0, true)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, to, reason)
}

// CancelOrder lets the owner cancel an order that was not paid yet.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uint, reason string) (*models.Order, error) {
	order, err := s.loadOrder(s.repos.WithContext(ctx), orderID, userID, false)
	if err != nil {
		return nil, err
	}
	if !order.IsAwaitingPayment() {
		return nil, newError(KindInvalidTransition, "only unpaid orders can be canceled")
	}
	if reason == "" {
		reason = "canceled by customer"
	}
	return s.transition(ctx, order, models.OrderStateCanceled, reason)
}

func (s *Service) transition(ctx context.Context, order *models.Order, to, reason string) (*models.Order, error) {
	if !IsKnownOrderState(to) {
		return nil, newError(KindInvalidTransition, fmt.Sprintf("unknown order state %q", to))
	}
	if to == models.OrderStatePaid {
		return nil, newError(KindInvalidTransition, "orders are marked paid by payment confirmation only")
	}
	if !CanTransitionOrder(order.State, to) {
		return nil, newError(KindInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", order.State, to))
	}

	from := repository.OrderStates{State: order.State, PaymentState: order.PaymentState}
	next := repository.OrderStates{State: to, PaymentState: order.PaymentState}
	if to == models.OrderStateCanceled && order.PaymentState == models.PaymentStatePending {
		next.PaymentState = models.PaymentStateCanceled
	}
	restock := to == models.OrderStateCanceled &&
		(order.State == models.OrderStatePaid || order.State == models.OrderStateShipped)

	err := s.repos.Transaction(ctx, func(r *repository.Repositories) error {
		if err := r.Order.SetStates(order.ID, from, next, nil); err != nil {
			return err
		}
		if restock {
			return r.Product.RestoreForOrder(order.ID)
		}
		return nil
	})
	if errors.Is(err, repository.ErrStaleState) {
		return nil, newError(KindInvalidTransition, "order changed concurrently, reload and retry")
	}
	if err != nil {
		log.Errorf("[Payment] moving order %d to %s failed: %v", order.ID, to, err)
		return nil, wrapInternal("updating order failed", err)
	}

	updated, err := s.repos.WithContext(ctx).Order.GetByID(order.ID)
	if err != nil {
		return nil, wrapInternal("reloading order failed", err)
	}

	log.Infof("[Payment] order %d moved %s -> %s (restock=%t)", order.ID, order.State, to, restock)
	metrics.RecordPaymentOperation("order_transition", to)
	s.notify(ctx, Event{
		Type:          EventOrderStateChanged,
		OrderID:       updated.ID,
		UserID:        updated.UserID,
		Email:         s.userEmail(ctx, updated.UserID),
		Amount:        updated.Total,
		OrderState:    updated.State,
		PaymentState:  updated.PaymentState,
		PreviousState: order.State,
		Reason:        reason,
	})
	return updated, nil
}

// ListOrders returns a page of the user's orders with their items, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uint, offset, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.repos.WithContext(ctx).Order.ListForUser(userID, offset, limit)
	if err != nil {
		return nil, wrapInternal("listing orders failed", err)
	}
	return orders, nil
}

// ListWebhookEvents returns a page of recorded webhook deliveries and the total count.
func (s *Service) ListWebhookEvents(ctx context.Context, offset, limit int) ([]models.PaymentWebhookEvent, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	repo := s.repos.WithContext(ctx).Webhook
	events, err := repo.List(offset, limit)
	if err != nil {
		return nil, 0, wrapInternal("listing webhook events failed", err)
	}
	total, err := repo.Count()
	if err != nil {
		return nil, 0, wrapInternal("counting webhook events failed", err)
	}
	return events, total, nil
}
