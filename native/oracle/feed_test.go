package oracle

import (
	"context"
	"errors"
	"math"
	"testing"

	"solation/core/state"
	"solation/core/types"
	"solation/storage"
)

func TestPublishAndLatestPrice(t *testing.T) {
	var publisher types.Address
	publisher[0] = 7
	feed := NewFeed(state.NewManager(storage.NewMemDB()), publisher)
	ctx := context.Background()
	id := [32]byte{1}

	if _, err := feed.LatestPrice(ctx, id); !errors.Is(err, ErrFeedNotFound) {
		t.Fatalf("expected feed not found, got %v", err)
	}

	update := PriceUpdate{FeedID: id, Price: 60_000, Confidence: 5, Exponent: -8, PublishTime: 1_700_000_000}
	if err := feed.Publish(ctx, publisher, update); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, err := feed.LatestPrice(ctx, id)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != update {
		t.Fatalf("unexpected update %+v", got)
	}

	older := update
	older.PublishTime--
	if err := feed.Publish(ctx, publisher, older); !errors.Is(err, ErrOutdatedUpdate) {
		t.Fatalf("expected outdated update, got %v", err)
	}

	var stranger types.Address
	stranger[0] = 9
	if err := feed.Publish(ctx, stranger, update); !errors.Is(err, ErrUnauthorizedPublisher) {
		t.Fatalf("expected unauthorised publisher, got %v", err)
	}
}

func TestNegativePricesRoundTrip(t *testing.T) {
	var publisher types.Address
	feed := NewFeed(state.NewManager(storage.NewMemDB()))
	feed.AddPublisher(publisher)
	ctx := context.Background()

	for i, price := range []int64{-42, math.MinInt64} {
		update := PriceUpdate{FeedID: [32]byte{byte(i)}, Price: price, PublishTime: 10}
		if err := feed.Publish(ctx, publisher, update); err != nil {
			t.Fatalf("publish: %v", err)
		}
		got, err := feed.LatestPrice(ctx, update.FeedID)
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if got.Price != price {
			t.Fatalf("price = %d, want %d", got.Price, price)
		}
	}
	if got := (PriceUpdate{Price: math.MinInt64}).Magnitude(); got != 1<<63 {
		t.Fatalf("magnitude = %d", got)
	}
}

func TestCancelledContext(t *testing.T) {
	feed := NewFeed(state.NewManager(storage.NewMemDB()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := feed.LatestPrice(ctx, [32]byte{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancelled, got %v", err)
	}
}
