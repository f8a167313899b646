package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxPublishAttempts = 3
	publishRetryDelay  = time.Second
)

type Config struct {
	URL             string
	EmailQueue      string
	PaymentExchange string
}

// Publisher sends one persistent JSON message.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// RabbitMQ is a Publisher on a single connection. A broken channel is
// reopened on the next publish.
type RabbitMQ struct {
	cfg  Config
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQ connects and declares the email queue and the payment exchange.
func NewRabbitMQ(cfg Config) (*RabbitMQ, error) {
	r := &RabbitMQ{cfg: cfg}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setupTopology(ch, r.cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	r.conn, r.ch = conn, ch
	log.Infof("[Bus] connected, queue %s, exchange %s", r.cfg.EmailQueue, r.cfg.PaymentExchange)
	return nil
}

func setupTopology(ch *amqp.Channel, cfg Config) error {
	if _, err := ch.QueueDeclare(
		cfg.EmailQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.EmailQueue, err)
	}
	if err := ch.ExchangeDeclare(
		cfg.PaymentExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.PaymentExchange, err)
	}
	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		if r.ch == nil || r.ch.IsClosed() {
			r.closeLocked()
			if err := r.connect(); err != nil {
				lastErr = err
				log.Warnf("[Bus] reconnect failed (attempt %d/%d): %v", attempt, maxPublishAttempts, err)
				if !sleep(ctx, publishRetryDelay) {
					break
				}
				continue
			}
		}

		err := r.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Body:         body,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warnf("[Bus] publish to %q/%q failed (attempt %d/%d): %v", exchange, routingKey, attempt, maxPublishAttempts, err)
		r.closeLocked()
		if !sleep(ctx, publishRetryDelay) {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("publish aborted")
	}
	return lastErr
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *RabbitMQ) closeLocked() error {
	var err error
	if r.ch != nil {
		err = r.ch.Close()
		r.ch = nil
	}
	if r.conn != nil {
		if cerr := r.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.conn = nil
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
