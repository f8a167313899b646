package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PawMart/app/models"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// Config is the MySQL connection configuration.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// DSN returns the go-sql-driver data source name.
func (c Config) DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// SetupDatabase connects to MySQL, retrying while the server starts up, and
// migrates the schema. It panics when the database stays unreachable.
func SetupDatabase(cfg Config) {
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{})
		if err == nil {
			if err = Migrate(DB); err != nil {
				panic(err)
			}
			log.Info("[Database] connected and migrated")
			return
		}

		log.Warnf("[Database] failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// Migrate creates or updates all tables of the payment core.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentTransaction{},
		&models.PaymentStateHistory{},
		&models.PaymentWebhookEvent{},
	)
}

// GetDB returns the global database handle
func GetDB() *gorm.DB {
	return DB
}
