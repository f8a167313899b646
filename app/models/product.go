package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the inventory target of the payment core. AvailableQuantity is
// only ever changed through conditional statements in the product repository.
type Product struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Name              string          `gorm:"type:varchar(200);not null" json:"name"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	AvailableQuantity int             `gorm:"not null;default:0;check:chk_products_available_quantity,available_quantity >= 0" json:"available_quantity"`
	Active            bool            `gorm:"default:true;index" json:"active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
