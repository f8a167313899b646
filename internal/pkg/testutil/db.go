// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PawMart/app/models"
	"github.com/ManuelReschke/PawMart/internal/pkg/database"
)

// NewDB opens a migrated in-memory SQLite database. It uses a single
// connection, so concurrent transactions are serialized like row locks
// would serialize them on MySQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedUser creates an active user.
func SeedUser(t testing.TB, db *gorm.DB, id uint, role string) *models.User {
	t.Helper()
	u := &models.User{
		ID:       id,
		Name:     "user",
		Email:    fmt.Sprintf("user%d@pawmart.test", id),
		Password: "x",
		Role:     role,
		Status:   models.STATUS_ACTIVE,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedProduct creates an active product.
func SeedProduct(t testing.TB, db *gorm.DB, id uint, available int, price string) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:                id,
		Name:              "Product",
		UnitPrice:         decimal.RequireFromString(price),
		AvailableQuantity: available,
		Active:            true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Item is one order line for SeedOrder.
type Item struct {
	ProductID uint
	Quantity  int
	UnitPrice string
}

// SeedOrder creates a Pending/PendingPayment order with the given items and
// a total computed from them.
func SeedOrder(t testing.TB, db *gorm.DB, id, userID uint, items ...Item) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:              id,
		UserID:          userID,
		State:           models.OrderStatePending,
		PaymentState:    models.PaymentStatePending,
		ShippingAddress: "Calle 1",
		ContactPhone:    "555-0100",
	}
	total := decimal.Zero
	for _, it := range items {
		oi := models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: decimal.RequireFromString(it.UnitPrice),
		}
		total = total.Add(oi.Subtotal())
		o.Items = append(o.Items, oi)
	}
	o.Total = total
	require.NoError(t, db.Create(o).Error)
	return o
}

// Available returns a product's current stock.
func Available(t testing.TB, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.AvailableQuantity
}
