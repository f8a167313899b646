package repository

import (
	"time"

	"github.com/ManuelReschke/PawMart/app/models"
	"gorm.io/gorm"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create stores an order together with its items
func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID retrieves an order by its ID without items
func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetItems returns the items of an order
func (r *orderRepository) GetItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	return items, err
}

// SetStates moves the order from one state pair to another. The update only
// applies when the row still holds the expected pair, otherwise ErrStaleState.
// paidAt is written when non-nil.
func (r *orderRepository) SetStates(orderID uint, from, to OrderStates, paidAt *time.Time) error {
	updates := map[string]interface{}{
		"state":         to.State,
		"payment_state": to.PaymentState,
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND state = ? AND payment_state = ?", orderID, from.State, from.PaymentState).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// ListForUser returns a page of a user's orders, newest first
func (r *orderRepository) ListForUser(userID uint, offset, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Preload("Items").
		Find(&orders).Error
	return orders, err
}
