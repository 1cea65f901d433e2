// Package stats implements spec §4.I's async download-event pipeline:
// a RabbitMQ producer fired from the resolve path, a consumer that
// folds events into DailyRepoStats rows, and the trending score
// computation. Grounded on components/consumer and components/audit's
// AMQP producer/consumer bootstrap, generalized from a ledger
// transaction event to a download event.
package stats

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName is the single queue download events flow through.
const QueueName = "hub.download_events"

// DownloadEvent is one resolve/download hit, published from the HTTP
// layer so a slow stats write never blocks the response (spec §4.I).
type DownloadEvent struct {
	RepositoryID  int64  `json:"repository_id"`
	Date          string `json:"date"` // YYYY-MM-DD, UTC
	Authenticated bool   `json:"authenticated"`
	SessionKey    string `json:"session_key"` // session cookie id or client IP
}

// Producer publishes DownloadEvents onto the shared queue.
type Producer struct {
	ch *amqp.Channel
}

// NewProducer declares the durable queue and wraps the channel.
func NewProducer(ch *amqp.Channel) (*Producer, error) {
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, err
	}

	return &Producer{ch: ch}, nil
}

// Publish enqueues one event, JSON-encoded, persistent delivery.
func (p *Producer) Publish(ctx context.Context, event DownloadEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
