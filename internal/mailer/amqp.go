package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is the JSON body queued for the external sender.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Publisher is the part of *amqp.Channel the mailer uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPMailer queues mail on a durable RabbitMQ queue instead of sending it.
type AMQPMailer struct {
	pub   Publisher
	queue string
}

// NewAMQPMailer publishes to queue through the default exchange.
func NewAMQPMailer(pub Publisher, queue string) *AMQPMailer {
	return &AMQPMailer{pub: pub, queue: queue}
}

// DialAMQPMailer connects to url, declares queue as durable and returns the
// mailer with the connection to close on shutdown.
func DialAMQPMailer(url, queue string) (*AMQPMailer, *amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return NewAMQPMailer(ch, queue), conn, nil
}

// Send enqueues one persistent message.
func (m *AMQPMailer) Send(ctx context.Context, from, to, subject, body string) error {
	payload, err := json.Marshal(Message{From: from, To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("amqp marshal: %w", err)
	}

	err = m.pub.PublishWithContext(ctx,
		"",      // default exchange
		m.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}
