package common

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Exchange string

type BindingKey string

type MessageProducer interface {
	Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(key BindingKey, exchange Exchange) (<-chan amqp.Delivery, error)
}

const (
	BlogExchange   Exchange   = "blog_exchange"
	BlogChangedKey BindingKey = "blog.changed"
)

type MessageBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, ch, err := connectAMQP(URI)
	if err != nil {
		return nil, err
	}

	return &MessageBroker{
		conn: conn,
		ch:   ch,
	}, nil
}

func connectAMQP(URI string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	return conn, ch, nil
}

// Close closes the channel and then the connection.
func (mb *MessageBroker) Close() error {
	if err := mb.ch.Close(); err != nil {
		return err
	}

	return mb.conn.Close()
}

// SetupBlogExchange declares the exchange blog change notifications travel on.
// Every client process binds its own queue, so a topic exchange fans each
// notification out to all of them.
func SetupBlogExchange(mb *MessageBroker) error {
	return mb.ch.ExchangeDeclare(string(BlogExchange), "topic", true, false, false, false, nil)
}

func (mb *MessageBroker) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	err := mb.ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        msg,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

// Consume declares an exclusive, server-named queue bound to key and starts
// delivering from it. The queue goes away with the connection.
func (mb *MessageBroker) Consume(key BindingKey, exchange Exchange) (<-chan amqp.Delivery, error) {
	q, err := mb.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not declare queue: %w", err)
	}

	if err := mb.ch.QueueBind(q.Name, string(key), string(exchange), false, nil); err != nil {
		return nil, fmt.Errorf("could not bind queue: %w", err)
	}

	msgs, err := mb.ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}
