package rfq

import (
	"solation/core/batch"
	"solation/core/types"
)

// SubmitIntent binds user to a market maker's signed quote. The batch must
// carry the companion ed25519 instruction at params.SigInstructionIndex. The
// nonce is consumed and the escrow locked in the same transaction.
func (e *Engine) SubmitIntent(user types.Address, params SubmitParams, b batch.Batch) (*Intent, error) {
	var out *Intent
	err := e.execute("submit_intent", func(t *txn) error {
		if err := requireNotPaused(t.config); err != nil {
			return err
		}
		q := params.Quote
		if !q.Strategy.Valid() || q.ContractSize == 0 {
			return ErrInvalidQuoteParameters
		}
		asset, ok, err := t.config.Asset(q.AssetMint)
		if err != nil {
			return err
		}
		if !ok || !asset.Enabled {
			return ErrAssetNotEnabled
		}
		if asset.QuoteMint != q.QuoteMint {
			return ErrInvalidQuoteParameters
		}
		mm, err := t.store.marketMaker(params.MM)
		if err != nil {
			return err
		}
		if !mm.Active {
			return ErrMMNotActive
		}
		now := e.now()
		if q.QuoteExpiry <= now {
			return ErrQuoteExpired
		}
		if err := verifyQuoteSignature(b, params.SigInstructionIndex, mm.SigningKey, q.Message(), params.Signature); err != nil {
			return err
		}
		tracker, err := t.store.nonceTracker(params.MM)
		if err != nil {
			return err
		}
		if tracker.IsUsed(q.Nonce) {
			return ErrNonceAlreadyUsed
		}
		tracker.MarkUsed(q.Nonce)
		if err := t.store.putNonceTracker(tracker); err != nil {
			return err
		}

		escrowAmount := EscrowAmount(q.Strategy, q.StrikePrice, q.ContractSize)
		if escrowAmount == 0 {
			return ErrInvalidQuoteParameters
		}
		id, err := t.store.nextIntentID()
		if err != nil {
			return err
		}
		escrowMint := q.QuoteMint
		if q.Strategy == CoveredCall {
			escrowMint = q.AssetMint
		}
		intent := &Intent{
			ID:                 id,
			User:               user,
			MM:                 params.MM,
			AssetMint:          q.AssetMint,
			QuoteMint:          q.QuoteMint,
			Strategy:           q.Strategy,
			StrikePrice:        q.StrikePrice,
			PremiumPerContract: q.PremiumPerContract,
			ContractSize:       q.ContractSize,
			QuoteExpiry:        q.QuoteExpiry,
			Signature:          params.Signature,
			Nonce:              q.Nonce,
			EscrowVault:        EscrowAddress(id),
			EscrowMint:         escrowMint,
			EscrowAmount:       escrowAmount,
			CreatedAt:          now,
			FillDeadline:       now + e.fillWindow,
			Status:             IntentPending,
		}
		if err := e.custody.Assign(t.tx, intent.EscrowVault, ProgramAddress); err != nil {
			return err
		}
		if err := e.custody.Transfer(t.tx, escrowMint, user, intent.EscrowVault, escrowAmount, user); err != nil {
			return err
		}
		if err := t.putIntent(intent); err != nil {
			return err
		}
		t.emit(newCreatedEvent(intent))
		out = intent
		return nil
	})
	return out, err
}

// FillIntent lets the designated market maker accept a pending intent before
// its deadline. The premium moves from the market maker to the user and the
// escrow stays locked as the position's collateral.
func (e *Engine) FillIntent(caller types.Address, id uint64) (*Position, error) {
	var out *Position
	err := e.execute("fill_intent", func(t *txn) error {
		if err := requireNotPaused(t.config); err != nil {
			return err
		}
		intent, err := t.store.intent(id)
		if err != nil {
			return err
		}
		if intent.Status != IntentPending {
			return ErrIntentNotPending
		}
		if caller != intent.MM {
			return ErrUnauthorizedFill
		}
		mm, err := t.store.marketMaker(intent.MM)
		if err != nil {
			return err
		}
		if !mm.Active {
			return ErrMMNotActive
		}
		now := e.now()
		if now > intent.FillDeadline {
			return ErrIntentExpired
		}
		premium := intent.TotalPremium()
		if err := e.custody.Transfer(t.tx, intent.QuoteMint, caller, intent.User, premium, caller); err != nil {
			return err
		}
		position, err := e.openPosition(t, intent, mm, premium, caller, now)
		if err != nil {
			return err
		}
		t.emit(newFilledEvent(intent, position))
		out = position
		return nil
	})
	return out, err
}

// openPosition creates the position for intent, credits the fill to the
// market maker and marks the intent filled.
func (e *Engine) openPosition(t *txn, intent *Intent, mm *MarketMaker, premiumPaid uint64, mmVault types.Address, now int64) (*Position, error) {
	position := &Position{
		ID:                 intent.ID,
		IntentID:           intent.ID,
		User:               intent.User,
		MM:                 intent.MM,
		AssetMint:          intent.AssetMint,
		QuoteMint:          intent.QuoteMint,
		Strategy:           intent.Strategy,
		StrikePrice:        intent.StrikePrice,
		PremiumPerContract: intent.PremiumPerContract,
		ContractSize:       intent.ContractSize,
		PremiumPaid:        premiumPaid,
		CreatedAt:          now,
		ExpiryTimestamp:    intent.QuoteExpiry,
		UserVault:          intent.EscrowVault,
		MMVault:            mmVault,
		CollateralMint:     intent.EscrowMint,
		CollateralAmount:   intent.EscrowAmount,
		Status:             PositionActive,
	}
	if err := t.store.putPosition(position); err != nil {
		return nil, err
	}
	mm.recordFill(intent.ContractSize, now)
	if err := t.store.putMarketMaker(mm); err != nil {
		return nil, err
	}
	intent.Status = IntentFilled
	if err := t.putIntent(intent); err != nil {
		return nil, err
	}
	return position, nil
}

// CancelIntent returns the full escrow to the user of a pending intent.
func (e *Engine) CancelIntent(caller types.Address, id uint64) (*Intent, error) {
	var out *Intent
	err := e.execute("cancel_intent", func(t *txn) error {
		intent, err := t.store.intent(id)
		if err != nil {
			return err
		}
		if caller != intent.User {
			return ErrUnauthorized
		}
		if intent.Status != IntentPending {
			return ErrIntentNotPending
		}
		if err := e.releaseEscrow(t, intent, intent.User, intent.EscrowAmount); err != nil {
			return err
		}
		intent.EscrowReleased = true
		intent.Status = IntentCancelled
		if err := t.putIntent(intent); err != nil {
			return err
		}
		t.emit(newReleasedEvent(EventTypeIntentCancelled, intent, intent.EscrowAmount))
		out = intent
		return nil
	})
	return out, err
}

// ExpireIntent is permissionless: once the fill deadline has passed anyone may
// return the escrow to the user. The market maker is penalised.
func (e *Engine) ExpireIntent(caller types.Address, id uint64) (*Intent, error) {
	var out *Intent
	err := e.execute("expire_intent", func(t *txn) error {
		intent, err := t.store.intent(id)
		if err != nil {
			return err
		}
		if intent.Status != IntentPending {
			return ErrIntentNotPending
		}
		now := e.now()
		if now <= intent.FillDeadline {
			return ErrIntentNotExpired
		}
		if err := e.releaseEscrow(t, intent, intent.User, intent.EscrowAmount); err != nil {
			return err
		}
		mm, err := t.store.marketMaker(intent.MM)
		if err != nil {
			return err
		}
		mm.recordExpiry(now)
		if err := t.store.putMarketMaker(mm); err != nil {
			return err
		}
		intent.EscrowReleased = true
		intent.Status = IntentExpired
		if err := t.putIntent(intent); err != nil {
			return err
		}
		t.emit(newReleasedEvent(EventTypeIntentExpired, intent, intent.EscrowAmount).
			With("expiredBy", caller.String()).
			With("mmReputation", u64(uint64(mm.Reputation))))
		out = intent
		return nil
	})
	return out, err
}

// FlagDispute freezes a pending intent for owner review. Only the user or the
// market maker may flag it. No funds move.
func (e *Engine) FlagDispute(caller types.Address, id uint64, reason string) (*Intent, error) {
	var out *Intent
	err := e.execute("flag_dispute", func(t *txn) error {
		intent, err := t.store.intent(id)
		if err != nil {
			return err
		}
		if intent.Status != IntentPending {
			return ErrIntentNotPending
		}
		if caller != intent.User && caller != intent.MM {
			return ErrUnauthorizedDispute
		}
		if err := validateReason(reason); err != nil {
			return err
		}
		disputant := caller
		intent.Disputant = &disputant
		intent.DisputeReason = reason
		intent.Status = IntentDisputed
		if err := t.putIntent(intent); err != nil {
			return err
		}
		t.emit(newDisputedEvent(intent))
		out = intent
		return nil
	})
	return out, err
}
