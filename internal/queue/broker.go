package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Queue names.  The wait queue has no consumers: messages sit there
// until the per-queue TTL expires and the broker dead-letters them into
// releaseQueue, which is how a fixed delay becomes a durable timer.
const (
	showAddedQueue   = "show.added"
	releaseQueue     = "booking.release"
	releaseWaitQueue = "booking.release.wait"
)

// Broker owns the queue topology and publishes messages.  Connections
// are dialed per publish; publishes are rare (one per booking or
// admin action) and a dead connection then never lingers.
type Broker struct {
	url     string
	holdTTL time.Duration
	log     *logrus.Logger
}

// NewBroker declares the durable topology and returns a Broker.  The
// holdTTL becomes the x-message-ttl of the wait queue, i.e. the delay
// between booking creation and its release check.  Declaration is
// idempotent but TTL changes require deleting the old wait queue first;
// RabbitMQ refuses to redeclare a queue with different arguments.
func NewBroker(url string, holdTTL time.Duration, log *logrus.Logger) (*Broker, error) {
	b := &Broker{url: url, holdTTL: holdTTL, log: log}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(showAddedQueue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(releaseQueue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	// Dead-letter expired waiters into the work queue via the default
	// exchange, keyed by the work queue's name.
	waitArgs := amqp.Table{
		"x-message-ttl":             b.holdTTL.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": releaseQueue,
	}
	if _, err := ch.QueueDeclare(releaseWaitQueue, true, false, false, false, waitArgs); err != nil {
		return nil, err
	}
	return b, nil
}

// ScheduleRelease enqueues the deferred release check for a booking.
// The message is persistent and the queue durable, so the pending timer
// survives broker and process restarts.
func (b *Broker) ScheduleRelease(ctx context.Context, bookingID string) error {
	task := ReleaseTask{
		BookingID:   bookingID,
		ScheduledAt: time.Now().UTC().Format(time.RFC3339),
	}
	return b.publish(ctx, releaseWaitQueue, task)
}

// PublishShowAdded emits the show-added notification event.
func (b *Broker) PublishShowAdded(ctx context.Context, ev ShowAddedEvent) error {
	return b.publish(ctx, showAddedQueue, ev)
}

func (b *Broker) publish(ctx context.Context, queueName string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(b.url)
	if err != nil {
		b.log.WithError(err).Error("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()
	ch, err := conn.Channel()
	if err != nil {
		b.log.WithError(err).Error("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		b.log.WithError(err).WithField("queue", queueName).Error("rabbitmq: publish failed")
		return err
	}
	return nil
}
