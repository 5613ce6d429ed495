// Package messaging defines interfaces and implementations for interacting
// with a message queue broker.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes a received message. A nil return acknowledges the
// message; an error negatively acknowledges it.
type HandlerFunc func(ctx context.Context, msgBody []byte) error

// Client defines the interface for message queue operations.
type Client interface {
	// Publish sends a message to a topic/routing key.
	Publish(ctx context.Context, routingKey string, message []byte) error

	// Subscribe consumes messages from a queue, calling handler for each.
	// It starts a background goroutine and returns immediately; the context
	// signals when consumption should stop.
	Subscribe(ctx context.Context, queueName string, handler HandlerFunc) error

	// Close gracefully shuts down the connection to the broker.
	Close() error
}

// rabbitClient implements Client using RabbitMQ.
type rabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewClient connects to the broker at url and opens a channel.
func NewClient(url string, logger *slog.Logger) (Client, error) {
	log := logger.With(slog.String("component", "messaging"), slog.String("broker_type", "rabbitmq"))

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	log.Info("Connected to RabbitMQ")
	return &rabbitClient{conn: conn, channel: channel, logger: log}, nil
}

// Publish sends a persistent JSON message on the default exchange, where the
// routing key is the queue name.
func (c *rabbitClient) Publish(ctx context.Context, routingKey string, message []byte) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return errors.New("cannot publish: RabbitMQ channel is not open")
	}

	err := ch.PublishWithContext(ctx,
		"",         // default exchange
		routingKey, // queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         message,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", routingKey, err)
	}

	c.logger.Debug("Published message",
		slog.String("routing_key", routingKey),
		slog.Int("size_bytes", len(message)),
	)
	return nil
}

// Subscribe declares a durable queue and consumes it with manual
// acknowledgement, one message at a time.
func (c *rabbitClient) Subscribe(ctx context.Context, queueName string, handler HandlerFunc) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return errors.New("cannot subscribe: RabbitMQ channel is not open")
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS for queue %s: %w", queueName, err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",    // consumer tag (auto-generated)
		false, // manual acknowledgement
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer for queue %s: %w", queueName, err)
	}

	go c.consume(ctx, q.Name, msgs, handler)
	return nil
}

func (c *rabbitClient) consume(ctx context.Context, queue string, msgs <-chan amqp.Delivery, handler HandlerFunc) {
	subLog := c.logger.With(slog.String("queue", queue))
	subLog.Info("Consumer started, waiting for messages")

	for {
		select {
		case <-ctx.Done():
			subLog.Info("Context cancelled, stopping consumer")
			return

		case d, ok := <-msgs:
			if !ok {
				subLog.Warn("Message channel closed unexpectedly, stopping consumer")
				return
			}

			if err := handler(ctx, d.Body); err != nil {
				subLog.Error("Handler failed to process message",
					slog.Uint64("delivery_tag", d.DeliveryTag),
					slog.Any("error", err),
				)
				// Requeueing permanent failures loops forever, so don't.
				if nackErr := d.Nack(false, false); nackErr != nil {
					subLog.Error("Failed to NACK message", slog.Any("error", nackErr))
				}
				continue
			}

			if ackErr := d.Ack(false); ackErr != nil {
				subLog.Error("Failed to ACK message",
					slog.Uint64("delivery_tag", d.DeliveryTag),
					slog.Any("error", ackErr),
				)
			}
		}
	}
}

// Close shuts down the channel and connection.
func (c *rabbitClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close channel: %w", err)
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection: %w", err)
		}
		c.conn = nil
	}

	if firstErr == nil {
		c.logger.Info("RabbitMQ connection closed")
	}
	return firstErr
}

// Ensure implementation satisfies the interface.
var _ Client = (*rabbitClient)(nil)
