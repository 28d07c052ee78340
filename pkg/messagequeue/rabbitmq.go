package messagequeue

import (
	"fmt"

	"github.com/streadway/amqp"
)

// RabbitMQ implements MessageQueue on a RabbitMQ broker.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ dials the broker and opens a channel.
func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &RabbitMQ{conn: conn, channel: ch}, nil
}

// Publish sends body to the named queue, declaring it if necessary.
func (s *RabbitMQ) Publish(queueName string, body []byte) error {
	q, err := s.channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}
	err = s.channel.Publish("", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to queue '%s': %w", queueName, err)
	}
	return nil
}

// Consume delivers messages from the named queue to handler on a background
// goroutine until the channel closes.
func (s *RabbitMQ) Consume(queueName string, handler func(body []byte)) error {
	q, err := s.channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}
	deliveries, err := s.channel.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from queue '%s': %w", queueName, err)
	}
	go func() {
		for d := range deliveries {
			handler(d.Body)
		}
	}()
	return nil
}

// Close shuts down the channel and connection.
func (s *RabbitMQ) Close() error {
	if err := s.channel.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}
