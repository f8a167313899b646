package repository

import (
	"errors"

	"github.com/ManuelReschke/PawMart/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a transaction and its initial history row. When the gateway
// intent id is already known the stored row is returned with ErrDuplicateIntent.
// Callers wrap this in a transaction so both rows land together.
func (r *paymentRepository) Create(tx *models.PaymentTransaction, reason string) (*models.PaymentTransaction, error) {
	existing, err := r.FindByIntent(tx.GatewayIntentID)
	if err == nil {
		return existing, ErrDuplicateIntent
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := r.db.Create(tx).Error; err != nil {
		// Lost a race against another insert of the same intent. A plain read
		// would use the scope's snapshot and miss the committed row, so the
		// re-read locks to see the latest version.
		if existing, findErr := r.findByIntentLocked(tx.GatewayIntentID); findErr == nil {
			return existing, ErrDuplicateIntent
		}
		return nil, err
	}

	if err := r.appendHistory(tx.ID, nil, tx.State, reason); err != nil {
		return nil, err
	}
	return tx, nil
}

// GetByID retrieves a transaction by its ID
func (r *paymentRepository) GetByID(id uint) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := r.db.First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateState moves a transaction from the expected state to change.To and
// appends the matching history row. If the row is no longer in from,
// nothing is written and ErrStaleState is returned.
func (r *paymentRepository) UpdateState(id uint, from string, change StateChange) (*models.PaymentTransaction, error) {
	updates := map[string]interface{}{
		"state": change.To,
	}
	if change.Method != nil {
		updates["method"] = *change.Method
	}
	if change.ErrorDetails != nil {
		updates["error_details"] = truncate(*change.ErrorDetails, 500)
	}
	if change.ConfirmedAt != nil {
		updates["confirmed_at"] = *change.ConfirmedAt
	}

	res := r.db.Model(&models.PaymentTransaction{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrStaleState
	}

	prev := from
	if err := r.appendHistory(id, &prev, change.To, change.Reason); err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// FindByIntent retrieves a transaction by its gateway intent id
func (r *paymentRepository) FindByIntent(intentID string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := r.db.Where("gateway_intent_id = ?", intentID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepository) findByIntentLocked(intentID string) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := r.db.Clauses(clause.Locking{Strength: "SHARE"}).
		Where("gateway_intent_id = ?", intentID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindSucceededForOrder returns the succeeded transaction of an order, if any.
func (r *paymentRepository) FindSucceededForOrder(orderID uint) (*models.PaymentTransaction, error) {
	var t models.PaymentTransaction
	err := r.db.Where("order_id = ? AND state = ?", orderID, models.TransactionStateSucceeded).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListForOrder returns all transactions of an order, newest first
func (r *paymentRepository) ListForOrder(orderID uint) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.Where("order_id = ?", orderID).
		Order("created_at DESC").Order("id DESC").
		Find(&txs).Error
	return txs, err
}

// History returns the state history of a transaction in insertion order
func (r *paymentRepository) History(transactionID uint) ([]models.PaymentStateHistory, error) {
	var rows []models.PaymentStateHistory
	err := r.db.Where("transaction_id = ?", transactionID).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *paymentRepository) appendHistory(transactionID uint, prev *string, next, reason string) error {
	row := &models.PaymentStateHistory{
		TransactionID: transactionID,
		PreviousState: prev,
		NewState:      next,
	}
	if reason != "" {
		reason = truncate(reason, 300)
		row.Reason = &reason
	}
	return r.db.Create(row).Error
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
