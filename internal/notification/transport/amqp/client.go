// Package amqp carries outbox messages over a RabbitMQ direct exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/schoolride/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	"github.com/smallbiznis/schoolride/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const (
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

type Client struct {
	url          string
	exchangeName string
	queueName    string
	log          *zap.Logger
	metrics      *obsmetrics.BillingMetrics

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewClient(url, exchangeName, queueName string, log *zap.Logger) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		log:          log.Named("notification.amqp"),
		metrics:      obsmetrics.Billing(),
	}
}

// Connect dials the broker and declares the exchange and queue.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key equals the queue name on a direct exchange
	err = channel.QueueBind(queueName, queueName, exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends msg as a persistent JSON message. A broken connection is
// re-dialled once before giving up.
func (c *Client) Publish(ctx context.Context, msg domain.Message) error {
	body, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		if err := c.connectLocked(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     msg.ID.String(),
			CorrelationId: msg.Metadata.CorrelationID,
			Type:          string(msg.Kind),
			Timestamp:     time.Now().UTC(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.log.Debug("published notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("subject_id", msg.SubjectID.String()),
		zap.String("exchange", c.exchangeName),
		zap.String("queue", c.queueName),
	)
	return nil
}

// Consume delivers queue messages to handler until ctx is cancelled,
// reconnecting with exponential backoff when the connection drops.
func (c *Client) Consume(ctx context.Context, handler domain.Handler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.log.Warn("consumer disconnected, reconnecting",
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		c.mu.Lock()
		connErr := c.connectLocked()
		c.mu.Unlock()
		if connErr != nil {
			c.log.Warn("reconnect failed", zap.Error(connErr))
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler domain.Handler) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return errors.New("connection closed")
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info("started consuming notifications", zap.String("queue", c.queueName))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping message consumption", zap.Error(ctx.Err()))
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler domain.Handler) {
	msg, err := domain.UnmarshalMessage(delivery.Body)
	if err != nil {
		c.log.Error("failed to unmarshal message", zap.Error(err))
		_ = delivery.Nack(false, false)
		return
	}

	hctx := correlation.Restore(ctx, msg.Metadata)
	start := time.Now()
	if err := handler.Handle(hctx, msg); err != nil {
		c.metrics.RecordHandler(string(msg.Kind), "error", time.Since(start))
		c.log.Error("failed to handle message",
			zap.String("kind", string(msg.Kind)),
			zap.String("subject_id", msg.SubjectID.String()),
			zap.Bool("redelivered", delivery.Redelivered),
			zap.Error(err),
		)
		// requeue once; a second failure is dropped and left to the outbox retry
		_ = delivery.Nack(false, !delivery.Redelivered)
		return
	}

	c.metrics.RecordHandler(string(msg.Kind), "success", time.Since(start))
	_ = delivery.Ack(false)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return err
		}
	}
	return nil
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection", "closed", "eof", "broken pipe", "reset by peer"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
