package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PawMart/internal/pkg/database"
	"github.com/ManuelReschke/PawMart/internal/pkg/env"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
)

type Config struct {
	AppHost string
	AppPort string
	AppEnv  string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	CacheHost     string
	CachePort     string
	CachePassword string

	JWTSecret string

	RabbitMQURL     string
	EmailQueue      string
	PaymentExchange string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	StripeTimeout        time.Duration
	SupportedCurrencies  []string
	DefaultCurrency      string
}

// Load reads the configuration from the environment. env.SetupEnvFile must
// have run before.
func Load() *Config {
	return &Config{
		AppHost: env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort: env.GetEnv("APP_PORT", "4000"),
		AppEnv:  env.GetEnv("APP_ENV", "prod"),

		DBUser:     env.GetEnv("DB_USER", "pawmart"),
		DBPassword: env.GetSecret("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:     env.GetEnv("DB_HOST", "localhost"),
		DBPort:     env.GetEnv("DB_PORT", "3306"),
		DBName:     env.GetEnv("DB_NAME", "pawmart"),

		CacheHost:     env.GetEnv("CACHE_HOST", "localhost"),
		CachePort:     env.GetEnv("CACHE_PORT", "6379"),
		CachePassword: env.GetSecret("CACHE_PASSWORD_FILE", "CACHE_PASSWORD", ""),

		JWTSecret: env.GetSecret("JWT_SECRET_FILE", "JWT_SECRET", ""),

		RabbitMQURL:     env.GetSecret("RABBITMQ_URL_FILE", "RABBITMQ_URL", ""),
		EmailQueue:      env.GetEnv("EMAIL_QUEUE", "email.notifications"),
		PaymentExchange: env.GetEnv("PAYMENT_EXCHANGE", "payments_exchange"),

		StripeSecretKey:      env.GetSecret("STRIPE_SECRET_KEY_FILE", "STRIPE_SECRET_KEY", ""),
		StripePublishableKey: env.GetEnv("STRIPE_PUBLISHABLE_KEY", ""),
		StripeWebhookSecret:  env.GetSecret("STRIPE_WEBHOOK_SECRET_FILE", "STRIPE_WEBHOOK_SECRET", ""),
		StripeTimeout:        seconds(env.GetEnv("STRIPE_TIMEOUT_SECONDS", "15"), 15),
		SupportedCurrencies:  splitList(env.GetEnv("PAYMENT_SUPPORTED_CURRENCIES", "usd,eur,gbp,cop")),
		DefaultCurrency:      strings.ToLower(env.GetEnv("PAYMENT_DEFAULT_CURRENCY", "usd")),
	}
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

func (c *Config) ListenAddr() string {
	return c.AppHost + ":" + c.AppPort
}

func (c *Config) Database() database.Config {
	return database.Config{
		User:     c.DBUser,
		Password: c.DBPassword,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Name:     c.DBName,
	}
}

func (c *Config) Stripe() gateway.StripeConfig {
	return gateway.StripeConfig{
		SecretKey:      c.StripeSecretKey,
		PublishableKey: c.StripePublishableKey,
		Timeout:        c.StripeTimeout,
	}
}

// Payment returns the orchestrator settings. Unsigned webhooks are only
// accepted in dev mode.
func (c *Config) Payment() payment.Config {
	return payment.Config{
		SupportedCurrencies:   c.SupportedCurrencies,
		DefaultCurrency:       c.DefaultCurrency,
		WebhookSecret:         c.StripeWebhookSecret,
		AllowUnsignedWebhooks: c.IsDev(),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func seconds(s string, def int) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}
