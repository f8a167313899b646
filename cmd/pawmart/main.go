package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PawMart/app/controllers"
	"github.com/ManuelReschke/PawMart/app/repository"
	"github.com/ManuelReschke/PawMart/internal/pkg/bus"
	"github.com/ManuelReschke/PawMart/internal/pkg/cache"
	"github.com/ManuelReschke/PawMart/internal/pkg/config"
	"github.com/ManuelReschke/PawMart/internal/pkg/database"
	"github.com/ManuelReschke/PawMart/internal/pkg/env"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
	"github.com/ManuelReschke/PawMart/internal/pkg/metrics"
	"github.com/ManuelReschke/PawMart/internal/pkg/payment"
	"github.com/ManuelReschke/PawMart/internal/pkg/router"
)

func main() {
	env.SetupEnvFile()
	cfg := config.Load()

	app, cleanup := NewApplication(cfg)
	defer cleanup()

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// NewApplication wires the database, cache, bus, gateway and payment
// service into a fiber app. The returned func releases the connections.
func NewApplication(cfg *config.Config) (*fiber.App, func()) {
	database.SetupDatabase(cfg.Database())
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalFactory()

	cacheCfg := cache.Config{Host: cfg.CacheHost, Port: cfg.CachePort, Password: cfg.CachePassword}
	rdb := cache.SetupCache(cacheCfg)

	if cfg.StripeSecretKey == "" {
		log.Error("[Gateway] STRIPE_SECRET_KEY not set, payment intents will fail")
	}
	gw := gateway.WithBreaker(gateway.NewStripe(cfg.Stripe()), gateway.BreakerSettings{})

	opts := []payment.Option{payment.WithIntentCache(cache.NewIntentCache(rdb))}
	var mq *bus.RabbitMQ
	var err error
	busCfg := bus.Config{URL: cfg.RabbitMQURL, EmailQueue: cfg.EmailQueue, PaymentExchange: cfg.PaymentExchange}
	if cfg.RabbitMQURL != "" {
		if mq, err = bus.NewRabbitMQ(busCfg); err != nil {
			log.Warnf("[Bus] notifications disabled: %v", err)
		} else {
			opts = append(opts, payment.WithNotifier(bus.NewNotifier(mq, busCfg)))
		}
	} else {
		log.Warn("[Bus] RABBITMQ_URL not set, notifications disabled")
	}

	if cfg.StripeWebhookSecret == "" {
		if cfg.IsDev() {
			log.Warn("[Webhook] STRIPE_WEBHOOK_SECRET not set, signatures are not verified (dev mode)")
		} else {
			log.Error("[Webhook] STRIPE_WEBHOOK_SECRET not set, webhooks will be rejected")
		}
	}
	svc := payment.NewService(repos, gw, cfg.Payment(), opts...)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
		AppName:   "PawMart",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New(), metrics.PrometheusMiddleware())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Payments:       svc,
		Repos:          repos,
		Health:         repos,
		Cache:          controllers.PingFunc(cache.Ping),
		JWTSecret:      cfg.JWTSecret,
		LimiterStorage: cache.LimiterStorage(cacheCfg),
	})

	cleanup := func() {
		if mq != nil {
			_ = mq.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		if sqlDB, err := database.GetDB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return app, cleanup
}
