package stats

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kohakuhub/hub/internal/logging"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/platform/launcher"
)

// Consumer folds DownloadEvents into DailyRepoStats rows, deduplicating
// by (repository, date, session) within one process lifetime — spec
// §4.I's "session dedup uses the client's session cookie or IP".
type Consumer struct {
	Store  metadata.Store
	Logger logging.Logger

	ch *amqp.Channel

	mu   sync.Mutex
	seen map[string]bool
}

// NewConsumer wraps an already-open AMQP channel; the queue must
// already exist (the producer declares it).
func NewConsumer(ch *amqp.Channel, store metadata.Store, logger logging.Logger) *Consumer {
	return &Consumer{ch: ch, Store: store, Logger: logger, seen: make(map[string]bool)}
}

// Run implements launcher.App: consume until the channel closes or the
// launcher shuts down. Matches components/consumer's "cooperative task
// with its own Run(l) error" shape.
func (c *Consumer) Run(l *launcher.Launcher) error {
	deliveries, err := c.ch.Consume(QueueName, "hub-stats-consumer", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for delivery := range deliveries {
		if err := c.handle(context.Background(), delivery); err != nil {
			l.Logger.Errorf("stats: failed to handle download event: %s", err)
			_ = delivery.Nack(false, true)

			continue
		}

		_ = delivery.Ack(false)
	}

	return nil
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) error {
	var event DownloadEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return err
	}

	return c.Fold(ctx, event)
}

// Fold applies one event's dedup-and-increment logic; exported so unit
// tests can drive it directly without a real AMQP delivery.
func (c *Consumer) Fold(ctx context.Context, event DownloadEvent) error {
	dedupKey := dedupKey(event)

	c.mu.Lock()
	alreadySeen := c.seen[dedupKey]
	c.seen[dedupKey] = true
	c.mu.Unlock()

	if alreadySeen {
		return nil
	}

	return c.Store.Stats().IncrementDownload(ctx, event.RepositoryID, event.Date, event.Authenticated)
}

func dedupKey(e DownloadEvent) string {
	return e.Date + "/" + e.SessionKey + "/" + strconv.FormatInt(e.RepositoryID, 10)
}
