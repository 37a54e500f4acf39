package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"solation/core/state"
	"solation/core/types"
)

var (
	// ErrFeedNotFound is returned when no price has been published for a feed.
	ErrFeedNotFound = errors.New("oracle: feed not found")
	// ErrUnauthorizedPublisher marks updates from accounts outside the allowlist.
	ErrUnauthorizedPublisher = errors.New("oracle: publisher not authorised")
	// ErrOutdatedUpdate is returned when an update is older than the stored one.
	ErrOutdatedUpdate = errors.New("oracle: update older than stored price")
	errNilState       = errors.New("oracle: state not configured")
)

var pricePrefix = []byte("oracle/price/")

func priceKey(feedID [32]byte) []byte {
	return append(append([]byte(nil), pricePrefix...), feedID[:]...)
}

// PriceUpdate is a signed-magnitude price observation for a feed.
type PriceUpdate struct {
	FeedID      [32]byte
	Price       int64
	Confidence  uint64
	Exponent    int32
	PublishTime int64
}

// Magnitude returns |Price| without overflowing on math.MinInt64.
func (u PriceUpdate) Magnitude() uint64 {
	if u.Price >= 0 {
		return uint64(u.Price)
	}
	return uint64(-(u.Price + 1)) + 1
}

type storedPrice struct {
	FeedID      [32]byte
	Magnitude   uint64
	Negative    bool
	Confidence  uint64
	ExponentAbs uint32
	ExponentNeg bool
	PublishTime uint64
	Publisher   types.Address
}

func newStoredPrice(u PriceUpdate, publisher types.Address) (*storedPrice, error) {
	if u.PublishTime < 0 {
		return nil, fmt.Errorf("oracle: negative publish time")
	}
	rec := &storedPrice{
		FeedID:      u.FeedID,
		Magnitude:   u.Magnitude(),
		Negative:    u.Price < 0,
		Confidence:  u.Confidence,
		PublishTime: uint64(u.PublishTime),
		Publisher:   publisher,
	}
	if u.Exponent < 0 {
		rec.ExponentNeg = true
		rec.ExponentAbs = uint32(-int64(u.Exponent))
	} else {
		rec.ExponentAbs = uint32(u.Exponent)
	}
	return rec, nil
}

func (s *storedPrice) toUpdate() PriceUpdate {
	out := PriceUpdate{
		FeedID:      s.FeedID,
		Confidence:  s.Confidence,
		PublishTime: int64(s.PublishTime),
	}
	switch {
	case !s.Negative:
		out.Price = int64(s.Magnitude)
	case s.Magnitude > math.MaxInt64:
		out.Price = math.MinInt64
	default:
		out.Price = -int64(s.Magnitude)
	}
	if s.ExponentNeg {
		out.Exponent = -int32(s.ExponentAbs)
	} else {
		out.Exponent = int32(s.ExponentAbs)
	}
	return out
}

// Feed stores the latest price per feed id. Only allow-listed publishers may
// push updates.
type Feed struct {
	state *state.Manager

	mu         sync.RWMutex
	publishers map[types.Address]struct{}
}

// NewFeed constructs a price feed backed by the state manager.
func NewFeed(mgr *state.Manager, publishers ...types.Address) *Feed {
	f := &Feed{state: mgr, publishers: make(map[types.Address]struct{})}
	for _, p := range publishers {
		f.publishers[p] = struct{}{}
	}
	return f
}

// AddPublisher allow-lists addr.
func (f *Feed) AddPublisher(addr types.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishers[addr] = struct{}{}
}

// IsPublisher reports whether addr may publish.
func (f *Feed) IsPublisher(addr types.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.publishers[addr]
	return ok
}

// Publish stores update when it is at least as recent as the current price.
func (f *Feed) Publish(ctx context.Context, publisher types.Address, update PriceUpdate) error {
	if f == nil || f.state == nil {
		return errNilState
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.IsPublisher(publisher) {
		return ErrUnauthorizedPublisher
	}
	rec, err := newStoredPrice(update, publisher)
	if err != nil {
		return err
	}
	return f.state.Update(func(tx *state.Tx) error {
		var existing storedPrice
		ok, err := tx.KVGet(priceKey(update.FeedID), &existing)
		if err != nil {
			return err
		}
		if ok && rec.PublishTime < existing.PublishTime {
			return ErrOutdatedUpdate
		}
		return tx.KVPut(priceKey(update.FeedID), rec)
	})
}

// LatestPrice returns the most recent update for feedID.
func (f *Feed) LatestPrice(ctx context.Context, feedID [32]byte) (PriceUpdate, error) {
	if f == nil || f.state == nil {
		return PriceUpdate{}, errNilState
	}
	if err := ctx.Err(); err != nil {
		return PriceUpdate{}, err
	}
	var rec storedPrice
	var found bool
	err := f.state.View(func(tx *state.Tx) error {
		ok, err := tx.KVGet(priceKey(feedID), &rec)
		found = ok
		return err
	})
	if err != nil {
		return PriceUpdate{}, err
	}
	if !found {
		return PriceUpdate{}, ErrFeedNotFound
	}
	return rec.toUpdate(), nil
}
