// Package rabbitmq carries the OTP mail queue: the auth service
// publishes, the mailer worker consumes.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auth_backend/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*Client, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// SendOTPEmail enqueues an OTP delivery. Fire-and-forget from the auth
// service's perspective: delivery failures surface in the worker's logs.
func (c *Client) SendOTPEmail(ctx context.Context, to, code, purpose string) error {
	const op = "rabbitmq.SendOTPEmail"

	body, err := json.Marshal(models.Message{
		To:      to,
		Code:    code,
		Purpose: purpose,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return c.channel.PublishWithContext(
		ctx,
		"",
		c.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// Consume returns the delivery stream for the mailer worker. Messages
// are acked manually after the email goes out.
func (c *Client) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	const op = "rabbitmq.Consume"

	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return deliveries, nil
}

func (c *Client) Close() {
	_ = c.channel.Close()
	_ = c.conn.Close()
}
