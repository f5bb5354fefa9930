package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// amqpChannel is the subset of *amqp.Channel the forwarder needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder copies bus events to a durable topic exchange. The routing
// key is the event type.
type AMQPForwarder struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewAMQPForwarder(url, exchange string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	f, err := newAMQPForwarder(ch, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

func newAMQPForwarder(ch amqpChannel, exchange string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return &AMQPForwarder{ch: ch, exchange: exchange, timeout: 5 * time.Second, logger: logger}, nil
}

// Attach subscribes the forwarder to every booking lifecycle event.
func (f *AMQPForwarder) Attach(bus *EventBus) {
	bus.SubscribeAll(f.Handle)
}

// Handle publishes a single event as a persistent JSON message.
func (f *AMQPForwarder) Handle(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatUint(event.Seq, 10),
		Timestamp:    event.CreatedAt.UTC(),
		Type:         event.Type,
		Body:         event.Payload,
	}
	if err := f.ch.PublishWithContext(ctx, f.exchange, event.Type, false, false, msg); err != nil {
		if f.logger != nil {
			f.logger.Error().Err(err).Str("event_type", event.Type).Msg("rabbitmq publish failed")
		}
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (f *AMQPForwarder) Close() error {
	err := f.ch.Close()
	if f.conn != nil {
		if cerr := f.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
