package repository

import (
	"time"

	"github.com/ManuelReschke/PawMart/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// CreateIfNotExists inserts the event unless one with the same external id
// exists. It reports whether a row was created and returns the stored row.
func (r *webhookEventRepository) CreateIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentWebhookEvent
	if err := r.db.Where("external_event_id = ?", event.ExternalEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// MarkProcessed records the processing outcome on the event
func (r *webhookEventRepository) MarkProcessed(id uint, outcome WebhookOutcome) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":    outcome.Processed,
		"processed_at": &now,
		"result":       truncate(outcome.Result, 300),
	}
	if outcome.TransactionID != nil {
		updates["transaction_id"] = *outcome.TransactionID
	}
	return r.db.Model(&models.PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

// List returns a page of webhook events, newest first
func (r *webhookEventRepository) List(offset, limit int) ([]models.PaymentWebhookEvent, error) {
	var events []models.PaymentWebhookEvent
	err := r.db.Order("received_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

// Count returns the total number of stored webhook events
func (r *webhookEventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentWebhookEvent{}).Count(&count).Error
	return count, err
}
