package repository

import (
	"github.com/ManuelReschke/PawMart/app/models"
	"gorm.io/gorm"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// stockNeed is the quantity an order requires from one product, next to
// what the product currently holds.
type stockNeed struct {
	ProductID uint
	Needed    int64
	Available int64
}

// Create creates a new product
func (r *productRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// GetByID retrieves a product by its ID
func (r *productRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// needsForOrder sums item quantities per product, ordered by product id so
// concurrent scopes touch rows in the same order. A missing product reports
// zero availability.
func (r *productRepository) needsForOrder(orderID uint) ([]stockNeed, error) {
	var needs []stockNeed
	err := r.db.Table("order_items").
		Select("order_items.product_id AS product_id, SUM(order_items.quantity) AS needed, COALESCE(MAX(products.available_quantity), 0) AS available").
		Joins("LEFT JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Group("order_items.product_id").
		Order("order_items.product_id").
		Scan(&needs).Error
	return needs, err
}

// CheckAvailability fails with a *StockError on the first product that
// cannot cover the order.
func (r *productRepository) CheckAvailability(orderID uint) error {
	needs, err := r.needsForOrder(orderID)
	if err != nil {
		return err
	}
	for _, n := range needs {
		if n.Available < n.Needed {
			return &StockError{ProductID: n.ProductID, Needed: int(n.Needed), Available: int(n.Available)}
		}
	}
	return nil
}

// DeductForOrder decrements stock for every product of the order with one
// guarded statement per product. It must run inside a transaction: on a
// *StockError the caller rolls back so no product stays decremented.
func (r *productRepository) DeductForOrder(orderID uint) error {
	needs, err := r.needsForOrder(orderID)
	if err != nil {
		return err
	}
	for _, n := range needs {
		res := r.db.Model(&models.Product{}).
			Where("id = ? AND available_quantity >= ?", n.ProductID, n.Needed).
			UpdateColumn("available_quantity", gorm.Expr("available_quantity - ?", n.Needed))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			available := int64(0)
			var product models.Product
			if err := r.db.Select("available_quantity").First(&product, n.ProductID).Error; err == nil {
				available = int64(product.AvailableQuantity)
			}
			return &StockError{ProductID: n.ProductID, Needed: int(n.Needed), Available: int(available)}
		}
	}
	return nil
}

// RestoreForOrder gives the order's quantities back to stock.
func (r *productRepository) RestoreForOrder(orderID uint) error {
	needs, err := r.needsForOrder(orderID)
	if err != nil {
		return err
	}
	for _, n := range needs {
		err := r.db.Model(&models.Product{}).
			Where("id = ?", n.ProductID).
			UpdateColumn("available_quantity", gorm.Expr("available_quantity + ?", n.Needed)).Error
		if err != nil {
			return err
		}
	}
	return nil
}
