package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPDispatcher publishes notifications as JSON messages on a durable queue
// consumed by the delivery service.
type AMQPDispatcher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	timeout time.Duration
	log     *zap.Logger
	mu      sync.Mutex
}

// NewAMQPDispatcher connects to the broker and declares the queue.
func NewAMQPDispatcher(url, queue string, timeout time.Duration, log *zap.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue, // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	log.Info("connected to notification queue", zap.String("queue", q.Name))

	return &AMQPDispatcher{conn: conn, channel: ch, queue: q, timeout: timeout, log: log}, nil
}

// Notify publishes one notification.
func (d *AMQPDispatcher) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := schemas.Validate(schemas.Notification, body); err != nil {
		return fmt.Errorf("notification envelope rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.channel.PublishWithContext(
		ctx,
		"",           // exchange
		d.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID.String(),
			Type:         n.Type,
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	)
}

// NotifyMany publishes the same notification once per user.
func (d *AMQPDispatcher) NotifyMany(ctx context.Context, userIDs []uuid.UUID, n Notification) error {
	for _, id := range userIDs {
		msg := n
		msg.ID = uuid.New()
		msg.UserID = id
		if err := d.Notify(ctx, msg); err != nil {
			return fmt.Errorf("failed to notify %s: %w", id, err)
		}
	}
	return nil
}

// Close closes the channel and the connection.
func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.channel.Close(); err != nil {
		d.log.Warn("failed to close channel", zap.Error(err))
	}
	return d.conn.Close()
}
