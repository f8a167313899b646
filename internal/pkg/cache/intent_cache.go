package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
)

const intentKeyPrefix = "payment:intent:"

// IntentCache keeps the gateway view of payment intents for status queries.
// Every failure is treated as a miss.
type IntentCache struct {
	rdb *redis.Client
}

func NewIntentCache(rdb *redis.Client) *IntentCache {
	return &IntentCache{rdb: rdb}
}

func intentKey(id string) string {
	return intentKeyPrefix + id
}

func (c *IntentCache) GetIntent(ctx context.Context, intentID string) (*gateway.Intent, bool) {
	raw, err := c.rdb.Get(ctx, intentKey(intentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[Cache] reading intent %s failed: %v", intentID, err)
		}
		return nil, false
	}
	var intent gateway.Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		log.Warnf("[Cache] dropping unreadable entry for intent %s: %v", intentID, err)
		c.DeleteIntent(ctx, intentID)
		return nil, false
	}
	return &intent, true
}

// SetIntent stores the intent without its client secret.
func (c *IntentCache) SetIntent(ctx context.Context, intent *gateway.Intent, ttl time.Duration) {
	cached := *intent
	cached.ClientSecret = ""
	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, intentKey(intent.ID), raw, ttl).Err(); err != nil {
		log.Warnf("[Cache] caching intent %s failed: %v", intent.ID, err)
	}
}

func (c *IntentCache) DeleteIntent(ctx context.Context, intentID string) {
	if err := c.rdb.Del(ctx, intentKey(intentID)).Err(); err != nil {
		log.Warnf("[Cache] evicting intent %s failed: %v", intentID, err)
	}
}
