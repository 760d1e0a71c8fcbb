package eventlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/keeperwatch/pricewatch/pkg/apperrors"
)

func TestTopicAndGroupNames(t *testing.T) {
	t.Parallel()

	if TopicPriceUpdates != "price-updates" {
		t.Errorf("TopicPriceUpdates = %q, want price-updates", TopicPriceUpdates)
	}
	if TopicDealUpdates != "deal-updates" {
		t.Errorf("TopicDealUpdates = %q, want deal-updates", TopicDealUpdates)
	}
	if GroupPriceConsumer != "keeper-consumer-group" {
		t.Errorf("GroupPriceConsumer = %q, want keeper-consumer-group", GroupPriceConsumer)
	}
	if GroupDealConsumer != "keeper-consumer-group-deals" {
		t.Errorf("GroupDealConsumer = %q, want keeper-consumer-group-deals", GroupDealConsumer)
	}
}

func TestSendReturnsEventLogUnavailableWhenBrokerUnreachable(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProducer([]string{"127.0.0.1:1"}, logger) // nothing listens here
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := p.Send(ctx, TopicPriceUpdates, "B07W6JN8V8", map[string]string{"x": "y"})
	var unavailable *apperrors.EventLogUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *apperrors.EventLogUnavailable, got %T: %v", err, err)
	}
}
