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

// DealConsumer reads deal-updates and back-fills tracked products.
type DealConsumer struct {
	reader *kafka.Reader
	store  *store.Store
	logger *slog.Logger
}

// NewDealConsumer builds a DealConsumer in the group GroupDealConsumer.
func NewDealConsumer(brokers []string, st *store.Store, logger *slog.Logger) *DealConsumer {
	return &DealConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          TopicDealUpdates,
			GroupID:        GroupDealConsumer,
			CommitInterval: time.Second,
			MinBytes:       1,
			MaxBytes:       10e6,
		}),
		store:  st,
		logger: logger.With("component", "eventlog.deal_consumer"),
	}
}

// Run reads until ctx is cancelled, same backoff-and-reconnect policy as PriceConsumer.
func (c *DealConsumer) Run(ctx context.Context) error {
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

func (c *DealConsumer) process(ctx context.Context, msg kafka.Message) error {
	var evt types.DealUpdateEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		c.logger.Warn("malformed deal-update message, skipping", "error", err)
		return nil
	}

	return apperrors.RetryPersistence(ctx, func() error {
		return c.store.RecordDealPrice(evt.ProductCode, evt.CurrentPrice, evt.ProductTitle, "kafka_deals")
	})
}

// Close releases the reader.
func (c *DealConsumer) Close() error {
	return c.reader.Close()
}
