package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes JSON events to the conversation exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var errNoURL = errors.New("empty amqp url")

// NewPublisher dials RabbitMQ and falls back to a NoopPublisher when the
// broker is not configured or cannot be reached, so the service still starts.
func NewPublisher(amqpURL, exchange string) Publisher {
	p, err := Dial(amqpURL, exchange)
	if err != nil {
		slog.Warn("rabbitmq disabled, using noop", "error", err)
		return NoopPublisher{Reason: err.Error()}
	}
	slog.Info("rabbitmq connected", "exchange", exchange)
	return p
}

// Dial connects, opens a channel and declares the durable topic exchange.
func Dial(amqpURL, exchange string) (*AMQPPublisher, error) {
	if amqpURL == "" {
		return nil, errNoURL
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// AMQPPublisher sends persistent JSON messages on a single channel.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
	ch channel
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "rabbitmq publish failed", "routing_key", routingKey, "error", err)
	}
	return err
}

func (p *AMQPPublisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// NoopPublisher accepts and discards events.
type NoopPublisher struct {
	Reason string
}

func (NoopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	slog.DebugContext(ctx, "rabbitmq noop publish", "routing_key", routingKey, "event_type", fmt.Sprintf("%T", event))
	return nil
}

func (NoopPublisher) Close() error { return nil }

// Describe reports the publisher mode and, for the noop publisher, why it
// is in use.
func Describe(p Publisher) (mode, reason string) {
	switch pub := p.(type) {
	case *AMQPPublisher:
		return "amqp", ""
	case NoopPublisher:
		return "noop", pub.Reason
	default:
		return "unknown", ""
	}
}
