// Package bus carries short_code:long_url create-events between the
// shortener and the redirector over a durable RabbitMQ queue.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxRetries   = 10
	baseDelay    = 500 * time.Millisecond
	maxDelay     = 5 * time.Second
	totalTimeout = 15 * time.Second
)

var ErrMalformedMessage = errors.New("malformed bus message")

// Connect dials RabbitMQ with exponential backoff: up to 10 attempts from
// 500ms, capped at 5s per attempt, aborted after a total budget of 15s.
func Connect(url string) (*amqp.Connection, error) {
	deadline := time.Now().Add(totalTimeout)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			log.Println("Connected to RabbitMQ")
			return conn, nil
		}
		lastErr = err
		log.Printf("rabbitmq connect failed: attempt=%d/%d err=%v", attempt, maxRetries, err)

		delay := baseDelay << uint(attempt-1)
		if delay > maxDelay {
			delay = maxDelay
		}
		if time.Now().Add(delay).After(deadline) {
			return nil, fmt.Errorf("timed out connecting to rabbitmq: %w", lastErr)
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("exceeded max rabbitmq connect retries: %w", lastErr)
}

func declareQueue(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

// Publisher sends create-events on the url queue.
type Publisher struct {
	ch    *amqp.Channel
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueue(ch, queue); err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{ch: ch, queue: queue}, nil
}

// Publish sends "{short_code}:{long_url}" on the queue. Callers treat
// failures as non-fatal; the database row is already committed.
func (p *Publisher) Publish(ctx context.Context, shortCode, longURL string) error {
	payload := shortCode + ":" + longURL

	err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(payload),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.queue, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// ParseMessage splits a bus payload into short code and long URL. Only the
// first colon delimits: long URLs contain colons of their own.
func ParseMessage(payload []byte) (shortCode, longURL string, err error) {
	parts := strings.SplitN(string(payload), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedMessage
	}
	return parts[0], parts[1], nil
}

// URLCache is the warmer's view of the redirector cache.
type URLCache interface {
	SetLongURL(ctx context.Context, shortCode, longURL string) error
}

// Consumer subscribes to the url queue and primes the redirector cache.
type Consumer struct {
	ch    *amqp.Channel
	queue string
	cache URLCache
}

func NewConsumer(conn *amqp.Connection, queue string, cache URLCache) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueue(ch, queue); err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Consumer{ch: ch, queue: queue, cache: cache}, nil
}

// Start consumes deliveries until the context is cancelled. Every message is
// acked, including malformed ones and cache failures, to avoid poison loops;
// the warmer is idempotent so redelivery is harmless anyway.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(
		c.queue,
		"redirector", // consumer tag
		false,        // manual ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		log.Printf("Listening for messages on queue %s", c.queue)
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Println("rabbitmq delivery channel closed")
					return
				}
				c.handle(ctx, delivery)
			}
		}
	}()

	return nil
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	if err := WarmCache(ctx, c.cache, delivery.Body); err != nil {
		log.Printf("cache warm failed: payload=%q err=%v", delivery.Body, err)
	}

	if err := delivery.Ack(false); err != nil {
		log.Printf("failed to ack message: err=%v", err)
	}
}

// WarmCache applies one bus payload to the cache. Idempotent: the same
// message twice leaves the cache in the same state as once.
func WarmCache(ctx context.Context, cache URLCache, payload []byte) error {
	shortCode, longURL, err := ParseMessage(payload)
	if err != nil {
		return err
	}

	if err := cache.SetLongURL(ctx, shortCode, longURL); err != nil {
		return fmt.Errorf("failed to cache %s: %w", shortCode, err)
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
