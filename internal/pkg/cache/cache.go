package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

var client *redis.Client

type Config struct {
	Host     string
	Port     string
	Password string
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SetupCache initializes the connection to the redis compatible cache server.
// An unreachable server is logged, callers degrade to uncached lookups.
func SetupCache(cfg Config) *redis.Client {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if pong, err := client.Ping(ctx).Result(); err != nil {
		log.Warnf("[Cache] could not connect to %s: %v", cfg.Addr(), err)
	} else {
		log.Infof("[Cache] connected to %s: %s", cfg.Addr(), pong)
	}
	return client
}

// Ping reports whether the cache answers.
func Ping(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("cache not initialized")
	}
	return client.Ping(ctx).Err()
}

// LimiterStorage returns a fiber storage on database 1 of the same server,
// so rate limit counters are shared between instances.
func LimiterStorage(cfg Config) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: 1,
		Reset:    false,
	})
}
