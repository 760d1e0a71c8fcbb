package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/keeperwatch/pricewatch/internal/store"
	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

// PriceConsumer reads price-updates and persists history + derives alerts.
type PriceConsumer struct {
	reader *kafka.Reader
	store  *store.Store
	logger *slog.Logger
}

// NewPriceConsumer builds a PriceConsumer in the group GroupPriceConsumer.
func NewPriceConsumer(brokers []string, st *store.Store, logger *slog.Logger) *PriceConsumer {
	return &PriceConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          TopicPriceUpdates,
			GroupID:        GroupPriceConsumer,
			CommitInterval: time.Second,
			MinBytes:       1,
			MaxBytes:       10e6,
		}),
		store:  st,
		logger: logger.With("component", "eventlog.price_consumer"),
	}
}

// Run reads until ctx is cancelled. On any processing error it backs off 5s
// and reconnects without abandoning the cursor — the in-flight message is
// only committed after it is fully processed.
func (c *PriceConsumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("fetch failed, backing off", "error", err)
			sleepOrDone(ctx, 5*time.Second)
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			c.logger.Warn("process failed, backing off without committing cursor", "error", err)
			sleepOrDone(ctx, 5*time.Second)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("commit failed", "error", err)
		}
	}
}

func (c *PriceConsumer) process(ctx context.Context, msg kafka.Message) error {
	var evt types.PriceUpdateEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		// Shape mismatch on a log message is not retryable; skip and commit.
		c.logger.Warn("malformed price-update message, skipping", "error", err)
		return nil
	}

	var watches []types.WatchedProduct
	err := apperrors.RetryPersistence(ctx, func() error {
		var err error
		watches, err = c.store.ActiveWatchesByProductCode(evt.ProductCode)
		return err
	})
	if err != nil {
		return err
	}
	if len(watches) == 0 {
		return nil // not a tracked watch; skip
	}

	for _, w := range watches {
		if err := apperrors.RetryPersistence(ctx, func() error {
			_, err := c.store.UpdateWatchPrice(w.ID, evt.CurrentPrice, "kafka")
			return err
		}); err != nil {
			return err
		}

		if evt.CurrentPrice > evt.TargetPrice*1.01 {
			continue
		}
		var dup bool
		if err := apperrors.RetryPersistence(ctx, func() error {
			var err error
			dup, err = c.store.HasPendingOrSentAlertWithinHour(w.ID)
			return err
		}); err != nil {
			return err
		}
		if dup {
			c.logger.Info("duplicate blocked", "watch", w.ID, "price", evt.CurrentPrice)
			continue
		}
		if err := apperrors.RetryPersistence(ctx, func() error {
			_, err := c.store.CreatePriceAlert(w.ID, evt.CurrentPrice, evt.TargetPrice, evt.PreviousPrice, evt.CurrentPrice)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the reader.
func (c *PriceConsumer) Close() error {
	return c.reader.Close()
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
