package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/mailer"
)

// Expirer is the deferred release handler; the booking ledger
// implements it.  It must be idempotent, because the consumer delivers
// at-least-once.
type Expirer interface {
	ExpireIfUnpaid(ctx context.Context, bookingID string) error
}

// ReleaseConsumer drains booking.release and runs the expiry check for
// each task.  Handler errors are logged and the message is requeued so
// the broker redelivers it; a seat must never stay held because one
// attempt failed.
type ReleaseConsumer struct {
	URL     string
	Expirer Expirer
	Log     *logrus.Logger
}

// Run connects, consumes and reconnects forever.  It returns only if
// the consumer is fundamentally misconfigured; transient broker
// failures are retried with exponential backoff.
func (c *ReleaseConsumer) Run() error {
	return runConsumeLoop(c.URL, releaseQueue, c.Log, c.handle)
}

func (c *ReleaseConsumer) handle(body []byte) error {
	var task ReleaseTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("unmarshal release task: %w", err)
	}
	if task.BookingID == "" {
		return errors.New("release task without booking id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Expirer.ExpireIfUnpaid(ctx, task.BookingID); err != nil {
		return fmt.Errorf("expire booking %s: %w", task.BookingID, err)
	}
	return nil
}

// NotifyConsumer drains show.added and emails the configured recipient
// about newly scheduled shows.
type NotifyConsumer struct {
	URL    string
	Sender mailer.Sender
	To     string
	Log    *logrus.Logger
}

// Run connects, consumes and reconnects forever, like
// ReleaseConsumer.Run.
func (c *NotifyConsumer) Run() error {
	return runConsumeLoop(c.URL, showAddedQueue, c.Log, c.handle)
}

func (c *NotifyConsumer) handle(body []byte) error {
	var ev ShowAddedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal show added event: %w", err)
	}
	if c.To == "" {
		return nil // notifications not configured
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	msg := mailer.Message{
		To:      c.To,
		Subject: fmt.Sprintf("New shows scheduled: %s", ev.MovieTitle),
		Body: fmt.Sprintf("%d new show(s) for %q are open for booking, first screening at %s.",
			len(ev.ShowIDs), ev.MovieTitle, ev.FirstStartAt),
	}
	if err := c.Sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send show added mail: %w", err)
	}
	return nil
}

// runConsumeLoop is the shared reconnecting consume loop.  Messages are
// acked only after the handler succeeds; on failure they are requeued
// for redelivery.
func runConsumeLoop(url, queueName string, log *logrus.Logger, handle func([]byte) error) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).WithField("queue", queueName).
				Warnf("consumer: failed to dial broker; retrying in %s", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeOnce(conn, queueName, log, handle); err != nil {
			log.WithError(err).WithField("queue", queueName).
				Warn("consumer: consume loop ended; reconnecting")
			time.Sleep(2 * time.Second)
		}
		_ = conn.Close()
	}
}

func consumeOnce(conn *amqp.Connection, queueName string, log *logrus.Logger, handle func([]byte) error) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for d := range msgs {
		if err := handle(d.Body); err != nil {
			log.WithError(err).WithField("queue", queueName).Error("consumer: handle message failed")
			// Requeue for redelivery; the handlers are idempotent.
			time.Sleep(time.Second)
			_ = d.Nack(false, true)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}
