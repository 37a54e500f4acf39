package rfq

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"solation/native/oracle"
)

type stubOracle struct {
	update oracle.PriceUpdate
	err    error
}

func (s stubOracle) LatestPrice(context.Context, [32]byte) (oracle.PriceUpdate, error) {
	return s.update, s.err
}

func (f *fixture) expiredPosition(strategy Strategy, size, nonce uint64) *Position {
	f.t.Helper()
	intent := f.submit(f.quote(strategy, size, nonce))
	position := f.fill(intent.ID)
	f.now = position.ExpiryTimestamp
	return position
}

func TestSignedQuoteLifecycle(t *testing.T) {
	f := newFixture(t)

	intent := f.submit(f.quote(CoveredCall, 1, 5))
	params, b := f.sign(f.quote(CoveredCall, 1, 5), f.key)
	_, err := f.engine.SubmitIntent(f.user, params, b)
	require.ErrorIs(t, err, ErrNonceAlreadyUsed)

	position := f.fill(intent.ID)
	f.now = position.ExpiryTimestamp
	f.publish(60_000, f.now)

	mmBefore := f.balance(f.asset, f.mm)
	settlement, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
	require.NoError(t, err)
	require.Equal(t, PositionSettledITM, settlement.Status)
	require.Equal(t, uint64(60_000), settlement.Price)
	require.Zero(t, settlement.UserAmount)
	require.Equal(t, uint64(1), settlement.MMAmount)
	require.Equal(t, mmBefore+1, f.balance(f.asset, f.mm))

	stored, err := f.engine.Position(position.ID)
	require.NoError(t, err)
	require.Equal(t, PositionSettledITM, stored.Status)
	require.NotNil(t, stored.SettlementPrice)
	require.Equal(t, uint64(60_000), *stored.SettlementPrice)
	require.Equal(t, f.now, stored.SettledAt)

	mm := f.marketMaker()
	require.Equal(t, uint64(1), mm.Filled)
	require.Equal(t, InitialReputation+1, mm.Reputation)
}

func TestSettleCoveredCall(t *testing.T) {
	f := newFixture(t)
	itm := f.expiredPosition(CoveredCall, 1_000_000, 1)
	f.publish(60_000, f.now)

	userBefore := f.balance(f.asset, f.user)
	mmBefore := f.balance(f.asset, f.mm)
	f.events.Reset()
	settlement, err := f.engine.SettlePosition(context.Background(), f.publisher, itm.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(833_333), settlement.UserAmount)
	require.Equal(t, uint64(166_667), settlement.MMAmount)
	require.Equal(t, userBefore+833_333, f.balance(f.asset, f.user))
	require.Equal(t, mmBefore+166_667, f.balance(f.asset, f.mm))
	require.Zero(t, f.balance(f.asset, itm.UserVault))

	require.Equal(t, []string{EventTypePositionSettled}, f.events.Types())
	evt := f.events.Events()[0]
	require.Equal(t, "SETTLED_ITM", evt.Attributes["status"])
	require.Equal(t, f.publisher.String(), evt.Attributes["settledBy"])

	_, err = f.engine.SettlePosition(context.Background(), f.user, itm.ID)
	require.ErrorIs(t, err, ErrPositionNotActive)
}

func TestSettleAtStrikeIsOutOfTheMoney(t *testing.T) {
	for _, strategy := range []Strategy{CoveredCall, CashSecuredPut} {
		t.Run(strategy.String(), func(t *testing.T) {
			f := newFixture(t)
			position := f.expiredPosition(strategy, 1_000_000, 1)
			f.publish(int64(testStrike), f.now)

			settlement, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
			require.NoError(t, err)
			require.Equal(t, PositionSettledOTM, settlement.Status)
			require.Equal(t, position.CollateralAmount, settlement.UserAmount)
			require.Zero(t, settlement.MMAmount)
		})
	}
}

func TestSettleCashSecuredPut(t *testing.T) {
	f := newFixture(t)
	position := f.expiredPosition(CashSecuredPut, 1_000_000, 1)
	require.Equal(t, testStrike, position.CollateralAmount)
	f.publish(40_000, f.now)

	mmBefore := f.balance(f.quoteMint, f.mm)
	settlement, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
	require.NoError(t, err)
	require.Equal(t, PositionSettledITM, settlement.Status)
	require.Equal(t, uint64(40_000), settlement.UserAmount)
	require.Equal(t, uint64(10_000), settlement.MMAmount)
	require.Equal(t, mmBefore+10_000, f.balance(f.quoteMint, f.mm))
}

func TestSettleBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	intent := f.submit(f.quote(CoveredCall, 10, 1))
	position := f.fill(intent.ID)
	f.publish(60_000, f.now)

	f.now = position.ExpiryTimestamp - 1
	_, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
	require.ErrorIs(t, err, ErrPositionNotExpired)

	_, err = f.engine.SettlePosition(context.Background(), f.user, 99)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestSettleRejectsStalePrice(t *testing.T) {
	f := newFixture(t)
	position := f.expiredPosition(CoveredCall, 10, 1)

	f.publish(60_000, f.now-60)
	_, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
	require.ErrorIs(t, err, ErrPriceTooStale)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindStaleness, kind)

	f.publish(60_000, f.now-59)
	_, err = f.engine.SettlePosition(context.Background(), f.user, position.ID)
	require.NoError(t, err)
}

func TestSettleFeedErrors(t *testing.T) {
	f := newFixture(t)
	position := f.expiredPosition(CoveredCall, 10, 1)

	_, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
	require.ErrorIs(t, err, ErrPythFeedIdMismatch)

	var other [32]byte
	other[0] = 0x01
	mismatched := f.newEngine(stubOracle{update: oracle.PriceUpdate{FeedID: other, Price: 60_000, PublishTime: f.now}})
	_, err = mismatched.SettlePosition(context.Background(), f.user, position.ID)
	require.ErrorIs(t, err, ErrPythFeedIdMismatch)

	unavailable := errors.New("upstream unavailable")
	failing := f.newEngine(stubOracle{err: unavailable})
	_, err = failing.SettlePosition(context.Background(), f.user, position.ID)
	require.ErrorIs(t, err, unavailable)

	stored, err := f.engine.Position(position.ID)
	require.NoError(t, err)
	require.Equal(t, PositionActive, stored.Status)
}

func TestSettleNegativePriceUsesMagnitude(t *testing.T) {
	f := newFixture(t)
	position := f.expiredPosition(CoveredCall, 1_000_000, 1)
	negative := f.newEngine(stubOracle{update: oracle.PriceUpdate{FeedID: f.feedID, Price: -60_000, PublishTime: f.now}})

	settlement, err := negative.SettlePosition(context.Background(), f.user, position.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(60_000), settlement.Price)
	require.Equal(t, PositionSettledITM, settlement.Status)
}

func TestConcurrentSettlementPaysOnce(t *testing.T) {
	f := newFixture(t)
	position := f.expiredPosition(CoveredCall, 1_000_000, 1)
	f.publish(60_000, f.now)
	userBefore := f.balance(f.asset, f.user)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SettlePosition(context.Background(), f.user, position.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, userBefore+833_333, f.balance(f.asset, f.user))
}
