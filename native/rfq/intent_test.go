package rfq

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"solation/core/state"
	"solation/native/bank"
	"solation/native/protocol"
)

func TestSubmitIntentLocksEscrowAndConsumesNonce(t *testing.T) {
	f := newFixture(t)

	intent := f.submit(f.quote(CoveredCall, 1_000, 5))
	require.Equal(t, uint64(1), intent.ID)
	require.Equal(t, IntentPending, intent.Status)
	require.Equal(t, uint64(1_000), intent.EscrowAmount)
	require.Equal(t, f.asset, intent.EscrowMint)
	require.Equal(t, EscrowAddress(intent.ID), intent.EscrowVault)
	require.Equal(t, testStart+30, intent.FillDeadline)

	require.Equal(t, uint64(1_000), f.balance(f.asset, intent.EscrowVault))
	require.Equal(t, testFunding-1_000, f.balance(f.asset, f.user))

	tracker, err := f.engine.NonceTracker(f.mm)
	require.NoError(t, err)
	require.True(t, tracker.IsUsed(5))

	params, b := f.sign(f.quote(CoveredCall, 1_000, 5), f.key)
	_, err = f.engine.SubmitIntent(f.user, params, b)
	require.ErrorIs(t, err, ErrNonceAlreadyUsed)

	put := f.submit(f.quote(CashSecuredPut, 1_000_000, 6))
	require.Equal(t, uint64(2), put.ID)
	require.Equal(t, f.quoteMint, put.EscrowMint)
	require.Equal(t, testStrike, put.EscrowAmount)

	open, err := f.engine.OpenIntents()
	require.NoError(t, err)
	require.Len(t, open, 2)
	require.Equal(t, []uint64{1, 2}, []uint64{open[0].ID, open[1].ID})
}

func TestSubmitIntentValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(q *Quote)
		want   error
	}{
		{"zero size", func(q *Quote) { q.ContractSize = 0 }, ErrInvalidQuoteParameters},
		{"unknown strategy", func(q *Quote) { q.Strategy = 7 }, ErrInvalidQuoteParameters},
		{"unknown asset", func(q *Quote) { q.AssetMint = testAddr(0x55) }, ErrAssetNotEnabled},
		{"wrong quote mint", func(q *Quote) { q.QuoteMint = testAddr(0x55) }, ErrInvalidQuoteParameters},
		{"quote expired", func(q *Quote) { q.QuoteExpiry = f.now }, ErrQuoteExpired},
		{"zero put escrow", func(q *Quote) {
			q.Strategy = CashSecuredPut
			q.StrikePrice = 1
			q.ContractSize = 1
		}, ErrInvalidQuoteParameters},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := f.quote(CoveredCall, 10, uint64(100+i))
			tc.mutate(&q)
			params, b := f.sign(q, f.key)
			_, err := f.engine.SubmitIntent(f.user, params, b)
			require.ErrorIs(t, err, tc.want)

			tracker, err := f.engine.NonceTracker(f.mm)
			require.NoError(t, err)
			require.False(t, tracker.IsUsed(q.Nonce), "rejected submission consumed its nonce")
		})
	}
}

func TestSubmitIntentUnknownMarketMaker(t *testing.T) {
	f := newFixture(t)
	params, b := f.sign(f.quote(CoveredCall, 10, 1), f.key)
	params.MM = testAddr(0x44)
	_, err := f.engine.SubmitIntent(f.user, params, b)
	require.ErrorIs(t, err, ErrMMNotRegistered)
}

func TestSubmitIntentUnfundedUserRollsBack(t *testing.T) {
	f := newFixture(t)
	params, b := f.sign(f.quote(CoveredCall, 10, 2), f.key)
	_, err := f.engine.SubmitIntent(testAddr(0x66), params, b)
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)

	tracker, err := f.engine.NonceTracker(f.mm)
	require.NoError(t, err)
	require.False(t, tracker.IsUsed(2))

	_, err = f.engine.Intent(1)
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestSubmitIntentDisabledAsset(t *testing.T) {
	f := newFixture(t)
	disabled := false
	require.NoError(t, f.mgr.Update(func(tx *state.Tx) error {
		_, err := protocol.NewStore(tx).UpdateAsset(f.authority, f.asset, protocol.AssetUpdate{Enabled: &disabled})
		return err
	}))
	params, b := f.sign(f.quote(CoveredCall, 10, 1), f.key)
	_, err := f.engine.SubmitIntent(f.user, params, b)
	require.ErrorIs(t, err, ErrAssetNotEnabled)
}

func TestConcurrentSubmitsConsumeNonceOnce(t *testing.T) {
	f := newFixture(t)
	params, b := f.sign(f.quote(CoveredCall, 10, 42), f.key)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		replays   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SubmitIntent(f.user, params, b)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrNonceAlreadyUsed):
				replays++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, replays)
	require.Equal(t, uint64(10), f.balance(f.asset, EscrowAddress(1)))
}

func TestFillIntent(t *testing.T) {
	f := newFixture(t)
	intent := f.submit(f.quote(CoveredCall, 1_000, 1))

	_, err := f.engine.FillIntent(f.user, intent.ID)
	require.ErrorIs(t, err, ErrUnauthorizedFill)

	userQuote := f.balance(f.quoteMint, f.user)
	mmQuote := f.balance(f.quoteMint, f.mm)
	position := f.fill(intent.ID)

	premium := testPremium * 1_000
	require.Equal(t, intent.ID, position.ID)
	require.Equal(t, premium, position.PremiumPaid)
	require.Equal(t, PositionActive, position.Status)
	require.Equal(t, intent.QuoteExpiry, position.ExpiryTimestamp)
	require.Equal(t, intent.EscrowVault, position.UserVault)
	require.Equal(t, f.mm, position.MMVault)
	require.Equal(t, userQuote+premium, f.balance(f.quoteMint, f.user))
	require.Equal(t, mmQuote-premium, f.balance(f.quoteMint, f.mm))
	require.Equal(t, uint64(1_000), f.balance(f.asset, intent.EscrowVault))

	require.Equal(t, IntentFilled, f.intent(intent.ID).Status)
	mm := f.marketMaker()
	require.Equal(t, uint64(1), mm.Filled)
	require.Equal(t, uint64(1_000), mm.Volume)
	require.Equal(t, InitialReputation+1, mm.Reputation)

	_, err = f.engine.FillIntent(f.mm, intent.ID)
	require.ErrorIs(t, err, ErrIntentNotPending)

	open, err := f.engine.OpenIntents()
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestFillIntentDeadline(t *testing.T) {
	f := newFixture(t)
	onTime := f.submit(f.quote(CoveredCall, 10, 1))
	late := f.submit(f.quote(CoveredCall, 10, 2))

	f.now = onTime.FillDeadline
	f.fill(onTime.ID)

	f.now = late.FillDeadline + 1
	_, err := f.engine.FillIntent(f.mm, late.ID)
	require.ErrorIs(t, err, ErrIntentExpired)
}

func TestFillIntentUnfundedMarketMaker(t *testing.T) {
	f := newFixture(t)
	q := f.quote(CoveredCall, 10, 1)
	q.PremiumPerContract = testFunding
	intent := f.submit(q)

	_, err := f.engine.FillIntent(f.mm, intent.ID)
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)
	require.Equal(t, IntentPending, f.intent(intent.ID).Status)
}

func TestCancelIntent(t *testing.T) {
	f := newFixture(t)
	intent := f.submit(f.quote(CashSecuredPut, 1_000_000, 1))
	before := f.balance(f.quoteMint, f.user)

	_, err := f.engine.CancelIntent(f.mm, intent.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	cancelled, err := f.engine.CancelIntent(f.user, intent.ID)
	require.NoError(t, err)
	require.Equal(t, IntentCancelled, cancelled.Status)
	require.True(t, cancelled.EscrowReleased)
	require.Equal(t, before+intent.EscrowAmount, f.balance(f.quoteMint, f.user))
	require.Zero(t, f.balance(f.quoteMint, intent.EscrowVault))

	_, err = f.engine.CancelIntent(f.user, intent.ID)
	require.ErrorIs(t, err, ErrIntentNotPending)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindState, kind)
	require.Equal(t, before+intent.EscrowAmount, f.balance(f.quoteMint, f.user))

	_, err = f.engine.CancelIntent(f.user, 99)
	require.ErrorIs(t, err, ErrIntentNotFound)
}

func TestExpireIntentPenalisesMarketMaker(t *testing.T) {
	f := newFixture(t)
	intent := f.submit(f.quote(CoveredCall, 500, 1))
	before := f.balance(f.asset, f.user)

	f.now = intent.FillDeadline
	_, err := f.engine.ExpireIntent(testAddr(0x77), intent.ID)
	require.ErrorIs(t, err, ErrIntentNotExpired)

	f.now = intent.FillDeadline + 1
	expired, err := f.engine.ExpireIntent(testAddr(0x77), intent.ID)
	require.NoError(t, err)
	require.Equal(t, IntentExpired, expired.Status)
	require.Equal(t, before+500, f.balance(f.asset, f.user))

	mm := f.marketMaker()
	require.Equal(t, uint64(1), mm.Expired)
	require.Equal(t, InitialReputation-ReputationPenalty, mm.Reputation)
	require.Equal(t, uint64(0), mm.FillRate())

	_, err = f.engine.ExpireIntent(testAddr(0x77), intent.ID)
	require.ErrorIs(t, err, ErrIntentNotPending)
	require.Equal(t, before+500, f.balance(f.asset, f.user))
}

func TestReputationFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	for nonce := uint64(1); nonce <= 11; nonce++ {
		intent := f.submit(f.quote(CoveredCall, 1, nonce))
		f.now = intent.FillDeadline + 1
		_, err := f.engine.ExpireIntent(f.user, intent.ID)
		require.NoError(t, err)
	}
	mm := f.marketMaker()
	require.Zero(t, mm.Reputation)
	require.Equal(t, uint64(11), mm.Expired)
}

func TestConcurrentCancelAndExpireReleaseOnce(t *testing.T) {
	f := newFixture(t)
	intent := f.submit(f.quote(CoveredCall, 10, 1))
	before := f.balance(f.asset, f.user)
	f.now = intent.FillDeadline + 1

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.engine.CancelIntent(f.user, intent.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.engine.ExpireIntent(f.user, intent.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, before+10, f.balance(f.asset, f.user))
}

func TestFlagDispute(t *testing.T) {
	f := newFixture(t)
	intent := f.submit(f.quote(CoveredCall, 10, 1))

	_, err := f.engine.FlagDispute(testAddr(0x77), intent.ID, "")
	require.ErrorIs(t, err, ErrUnauthorizedDispute)

	long := make([]byte, MaxReasonLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.engine.FlagDispute(f.user, intent.ID, string(long))
	require.ErrorIs(t, err, ErrDisputeReasonTooLong)

	disputed, err := f.engine.FlagDispute(f.mm, intent.ID, string(long[:MaxReasonLen]))
	require.NoError(t, err)
	require.Equal(t, IntentDisputed, disputed.Status)
	require.NotNil(t, disputed.Disputant)
	require.Equal(t, f.mm, *disputed.Disputant)
	require.Equal(t, uint64(10), f.balance(f.asset, intent.EscrowVault))

	stored := f.intent(intent.ID)
	require.Equal(t, f.mm, *stored.Disputant)
	require.Len(t, stored.DisputeReason, MaxReasonLen)

	_, err = f.engine.FillIntent(f.mm, intent.ID)
	require.ErrorIs(t, err, ErrIntentNotPending)
	_, err = f.engine.CancelIntent(f.user, intent.ID)
	require.ErrorIs(t, err, ErrIntentNotPending)
	_, err = f.engine.FlagDispute(f.user, intent.ID, "again")
	require.ErrorIs(t, err, ErrIntentNotPending)

	open, err := f.engine.OpenIntents()
	require.NoError(t, err)
	require.Len(t, open, 1)
}
