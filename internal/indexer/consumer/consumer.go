// Package consumer listens for index events on Kafka and reloads the shared
// snapshot when another process has published a new one.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/infospark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/kafka"
)

// Reloader is the part of the engine the consumer drives.
type Reloader interface {
	InstanceID() string
	Reload(ctx context.Context) error
}

// ReloadConsumer wraps a Kafka consumer subscribed to index events.
type ReloadConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a ReloadConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *ReloadConsumer {
	return &ReloadConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (rc *ReloadConsumer) Start(ctx context.Context) error {
	rc.logger.Info("reload consumer starting")
	return rc.consumer.Run(ctx)
}

// HandleMessage returns a Kafka MessageHandler that reloads the index for
// every event published by a different engine instance. Undecodable
// messages are logged and committed so they are not redelivered forever.
func HandleMessage(engine Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexEvent](value)
		if err != nil {
			logger.Error("failed to decode index event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.Instance == engine.InstanceID() {
			logger.Debug("ignoring own index event", "store", event.Store)
			return nil
		}

		if err := engine.Reload(ctx); err != nil {
			return fmt.Errorf("reloading index announced by %s: %w", event.Instance, err)
		}
		logger.Info("index reloaded",
			"from_instance", event.Instance,
			"documents", event.Documents,
			"terms", event.Terms,
		)
		return nil
	}
}
