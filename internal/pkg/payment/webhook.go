package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
	"github.com/ManuelReschke/PawMart/internal/pkg/metrics"
)

// Webhook acknowledgement statuses.
const (
	WebhookReceived  = "received"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
	WebhookError     = "error"
)

// WebhookResult is the acknowledgement body for the gateway.
type WebhookResult struct {
	Status  string
	EventID string
	Result  string
}

// HandleWebhook verifies, records and reconciles one gateway delivery.
// Only signature and payload failures return an error; every other outcome,
// including internal failures, is acknowledged and recorded on the event row
// so the gateway does not redeliver indefinitely. An event whose processing
// failed internally stays unprocessed and is retried on redelivery.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	evt, err := s.decodeWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	if evt == nil {
		return &WebhookResult{Status: WebhookIgnored}, nil
	}

	repo := s.repos.WithContext(ctx).Webhook
	created, stored, err := repo.CreateIfNotExists(&models.PaymentWebhookEvent{
		ExternalEventID: evt.ID,
		EventType:       evt.Type,
		Payload:         models.TruncatePayload(payload),
		SignatureValid:  s.cfg.WebhookSecret != "",
	})
	if err != nil {
		log.Errorf("[Webhook] storing event %s failed: %v", evt.ID, err)
		metrics.RecordWebhookEvent(evt.Type, WebhookError)
		return &WebhookResult{Status: WebhookError, EventID: evt.ID, Result: "event could not be stored"}, nil
	}
	if !created && stored.Processed {
		log.Infof("[Webhook] event %s already processed, skipping", evt.ID)
		metrics.RecordWebhookEvent(evt.Type, WebhookDuplicate)
		return &WebhookResult{Status: WebhookDuplicate, EventID: evt.ID}, nil
	}

	outcome := s.reconcile(ctx, evt)
	if err := repo.MarkProcessed(stored.ID, outcome); err != nil {
		log.Errorf("[Webhook] recording outcome of event %s failed: %v", evt.ID, err)
	}

	status := WebhookReceived
	if !outcome.Processed {
		status = WebhookError
	}
	metrics.RecordWebhookEvent(evt.Type, status)
	log.Infof("[Webhook] event %s (%s): %s", evt.ID, evt.Type, outcome.Result)
	return &WebhookResult{Status: status, EventID: evt.ID, Result: outcome.Result}, nil
}

// decodeWebhook returns a nil event when an unsigned payload cannot be
// parsed, which is acknowledged without recording anything.
func (s *Service) decodeWebhook(payload []byte, signature string) (*gateway.Event, error) {
	if s.cfg.WebhookSecret != "" {
		evt, err := s.gateway.VerifyWebhook(payload, signature, s.cfg.WebhookSecret)
		if err != nil {
			perr := fromGateway(err)
			log.Warnf("[Webhook] rejected delivery: %v", err)
			metrics.RecordWebhookEvent("unknown", string(perr.Kind))
			return nil, perr
		}
		return evt, nil
	}

	if !s.cfg.AllowUnsignedWebhooks {
		log.Error("[Webhook] no webhook secret configured and unsigned webhooks are not allowed")
		return nil, newError(KindGatewayMisconfigured, "webhook secret is not configured")
	}

	log.Warn("[Webhook] webhook secret not configured, skipping signature verification")
	evt, err := s.gateway.ParseEvent(payload)
	if err != nil {
		log.Warnf("[Webhook] ignoring malformed unsigned payload: %v", err)
		metrics.RecordWebhookEvent("unknown", WebhookIgnored)
		return nil, nil
	}
	return evt, nil
}

func (s *Service) reconcile(ctx context.Context, evt *gateway.Event) repository.WebhookOutcome {
	switch evt.Type {
	case gateway.EventIntentSucceeded:
		return s.reconcileSucceeded(ctx, evt)
	case gateway.EventIntentPaymentFailed:
		msg := evt.Object.LastError
		if msg == "" {
			msg = "payment failed"
		}
		return s.reconcileClosed(ctx, evt, models.TransactionStateFailed, msg)
	case gateway.EventIntentCanceled:
		return s.reconcileClosed(ctx, evt, models.TransactionStateCanceled, "")
	case gateway.EventDisputeCreated:
		return s.reconcileDispute(ctx, evt)
	default:
		return repository.WebhookOutcome{Processed: true, Result: "unhandled event type: " + evt.Type}
	}
}

// findTransaction resolves the transaction of an intent event. A nil
// transaction with a processed outcome means there is nothing to do.
func (s *Service) findTransaction(ctx context.Context, intentID string) (*models.PaymentTransaction, *repository.WebhookOutcome) {
	if intentID == "" {
		return nil, &repository.WebhookOutcome{Processed: true, Result: "event carries no payment intent"}
	}
	tx, err := s.repos.WithContext(ctx).Payment.FindByIntent(intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &repository.WebhookOutcome{Processed: true, Result: "transaction not found for intent " + intentID}
		}
		return nil, &repository.WebhookOutcome{Processed: false, Result: "loading transaction failed: " + err.Error()}
	}
	return tx, nil
}

func (s *Service) reconcileSucceeded(ctx context.Context, evt *gateway.Event) repository.WebhookOutcome {
	tx, outcome := s.findTransaction(ctx, evt.Object.IntentID)
	if outcome != nil {
		return *outcome
	}

	if tx.State == models.TransactionStateSucceeded {
		return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: "transaction already succeeded"}
	}
	if tx.IsTerminal() {
		log.Errorf("[Webhook] intent %s succeeded but transaction %d is %s, needs manual review", tx.GatewayIntentID, tx.ID, tx.State)
		return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: fmt.Sprintf("transaction already %s, success needs manual review", tx.State)}
	}

	res, err := s.applySuccess(ctx, tx.ID, evt.Object.PaymentMethodType, "payment_intent.succeeded webhook")
	if err != nil {
		switch KindOf(err) {
		case KindInsufficientStock, KindInvalidOrderState, KindNotConfirmed:
			log.Errorf("[Webhook] intent %s succeeded but could not be applied: %v", tx.GatewayIntentID, err)
			return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: PublicMessage(err)}
		default:
			return repository.WebhookOutcome{Processed: false, TransactionID: &tx.ID, Result: "processing failed: " + err.Error()}
		}
	}
	if res.AlreadyConfirmed {
		return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: "transaction already succeeded"}
	}
	return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: "transaction succeeded, order paid"}
}

func (s *Service) reconcileClosed(ctx context.Context, evt *gateway.Event, to, details string) repository.WebhookOutcome {
	tx, outcome := s.findTransaction(ctx, evt.Object.IntentID)
	if outcome != nil {
		return *outcome
	}
	if tx.IsTerminal() {
		return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: "transaction already " + tx.State}
	}

	if !s.closeTransaction(ctx, tx, to, evt.Type+" webhook", details) {
		current, err := s.repos.WithContext(ctx).Payment.GetByID(tx.ID)
		if err != nil || current.State == models.TransactionStatePending {
			return repository.WebhookOutcome{Processed: false, TransactionID: &tx.ID, Result: "marking transaction " + to + " failed"}
		}
		return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: "transaction already " + current.State}
	}
	return repository.WebhookOutcome{Processed: true, TransactionID: &tx.ID, Result: "transaction " + to}
}

// reconcileDispute only records the dispute. Stock and order state stay as they are.
func (s *Service) reconcileDispute(ctx context.Context, evt *gateway.Event) repository.WebhookOutcome {
	out := repository.WebhookOutcome{
		Processed: true,
		Result:    fmt.Sprintf("dispute created - charge: %s, reason: %s", evt.Object.ChargeID, evt.Object.Reason),
	}
	if evt.Object.IntentID != "" {
		if tx, err := s.repos.WithContext(ctx).Payment.FindByIntent(evt.Object.IntentID); err == nil {
			out.TransactionID = &tx.ID
		}
	}
	log.Warnf("[Webhook] %s", out.Result)
	return out
}
