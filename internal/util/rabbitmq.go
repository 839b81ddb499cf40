package util

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forumhub/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

func NewRabbitMQClient(cfg *config.Config) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQClient{conn: conn, channel: ch}, nil
}

// DeclareQueue declares a durable direct exchange and a durable queue bound with routingKey.
func (r *RabbitMQClient) DeclareQueue(exchange, queue, routingKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	return r.channel.QueueBind(queue, routingKey, exchange, false, nil)
}

// Publish sends a persistent JSON message. A channel is not safe for concurrent
// publishers, hence the lock.
func (r *RabbitMQClient) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consume opens a dedicated channel for a consumer so publishes are not serialised behind it.
func (r *RabbitMQClient) Consume(queue, consumer string) (<-chan amqp.Delivery, *amqp.Channel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		return nil, nil, err
	}
	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, err
	}
	return msgs, ch, nil
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
