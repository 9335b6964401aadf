package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/labor-marketplace/internal/model"
	"github.com/iliyamo/labor-marketplace/internal/queue"
)

// QueuePublisher hands passcodes to RabbitMQ instead of sending them
// inline.  Each publish dials its own connection; the request path only
// pays for it on issuance.
type QueuePublisher struct {
	url   string
	queue string
	now   func() time.Time
}

// NewQueuePublisher returns a publisher for the durable queue queueName
// on the broker at url.
func NewQueuePublisher(url, queueName string) *QueuePublisher {
	if queueName == "" {
		queueName = queue.DeliveryQueueName
	}
	return &QueuePublisher{url: url, queue: queueName, now: time.Now}
}

func (p *QueuePublisher) publishing(msg model.OutOfBandMessage) (amqp.Publishing, error) {
	now := p.now().UTC()
	body, err := json.Marshal(queue.NewOTPDeliveryEvent(msg, now))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal delivery event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    msg.ID,
		Timestamp:    now,
		Body:         body,
	}, nil
}

// SendOutOfBand publishes msg as an OTPDeliveryEvent.
func (p *QueuePublisher) SendOutOfBand(ctx context.Context, msg model.OutOfBandMessage) error {
	pub, err := p.publishing(msg)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
