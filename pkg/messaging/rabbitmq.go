package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"training-service/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes training lifecycle events (session completions,
// badge awards) to durable queues consumed by downstream services.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQClient(cfg *config.RabbitMQConfig) (*RabbitMQClient, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &RabbitMQClient{
		conn:     conn,
		channel:  channel,
		declared: make(map[string]bool),
	}, nil
}

func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// DeclareQueue declares a durable queue and remembers it so Publish does not
// re-declare on every message.
func (c *RabbitMQClient) DeclareQueue(name string) (amqp.Queue, error) {
	queue, err := c.channel.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return queue, err
	}

	c.mu.Lock()
	c.declared[name] = true
	c.mu.Unlock()
	return queue, nil
}

// Publish sends a persistent JSON message to the named queue, declaring it
// first if this client has not seen it yet.
func (c *RabbitMQClient) Publish(ctx context.Context, queueName string, body []byte) error {
	c.mu.Lock()
	known := c.declared[queueName]
	c.mu.Unlock()

	if !known {
		if _, err := c.DeclareQueue(queueName); err != nil {
			return fmt.Errorf("failed to declare queue: %w", err)
		}
	}

	return c.channel.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
