package models

import (
	"strings"
	"time"
)

// MaxWebhookPayloadLength caps the stored raw payload.
const MaxWebhookPayloadLength = 4000

// PaymentWebhookEvent stores every gateway webhook delivery. The unique index
// on ExternalEventID deduplicates redeliveries.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ExternalEventID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_webhook_events_external" json:"external_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         string     `gorm:"type:varchar(4000)" json:"payload"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	Processed       bool       `gorm:"not null;default:false;index" json:"processed"`
	TransactionID   *uint      `gorm:"index;default:null" json:"transaction_id,omitempty"`
	Result          *string    `gorm:"type:varchar(300);default:null" json:"result,omitempty"`
	ReceivedAt      time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
}

// TruncatePayload cuts a raw payload to MaxWebhookPayloadLength bytes without
// leaving a broken UTF-8 sequence at the end.
func TruncatePayload(raw []byte) string {
	if len(raw) > MaxWebhookPayloadLength {
		return strings.ToValidUTF8(string(raw[:MaxWebhookPayloadLength]), "")
	}
	return string(raw)
}
