package rfq

import (
	"solation/core/types"
)

// resolvable loads an intent an owner override may act on after checking the
// caller is the protocol authority.
func (e *Engine) resolvable(t *txn, authority types.Address, id uint64, reason string) (*Intent, error) {
	if _, err := requireAuthority(t.config, authority); err != nil {
		return nil, err
	}
	intent, err := t.store.intent(id)
	if err != nil {
		return nil, err
	}
	if intent.EscrowReleased && intent.Status == IntentDisputed {
		return nil, ErrEscrowReleased
	}
	if !intent.Resolvable() {
		return nil, ErrIntentNotResolvable
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	return intent, nil
}

func (e *Engine) resolve(op string, fn func(t *txn) (*Resolution, error)) (*Resolution, error) {
	var out *Resolution
	err := e.execute(op, func(t *txn) error {
		res, err := fn(t)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err == nil && out != nil {
		e.metrics.RecordResolution(out.Type)
	}
	return out, err
}

// MutualUnwind returns the full escrow to the user without creating a
// position.
func (e *Engine) MutualUnwind(authority types.Address, id uint64, reason string) (*Resolution, error) {
	return e.resolve("mutual_unwind", func(t *txn) (*Resolution, error) {
		intent, err := e.resolvable(t, authority, id, reason)
		if err != nil {
			return nil, err
		}
		if err := e.releaseEscrow(t, intent, intent.User, intent.EscrowAmount); err != nil {
			return nil, err
		}
		intent.EscrowReleased = true
		intent.Status = IntentResolvedToUser
		if err := t.putIntent(intent); err != nil {
			return nil, err
		}
		t.emit(newReleasedEvent(EventTypeIntentUnwound, intent, intent.EscrowAmount))
		t.emit(newResolvedEvent(intent, ResolutionMutualUnwind, authority, reason))
		return &Resolution{
			IntentID:   intent.ID,
			Type:       ResolutionMutualUnwind,
			UserAmount: intent.EscrowAmount,
			Status:     intent.Status,
		}, nil
	})
}

// ForceContinue creates the position as if the market maker had filled. When
// payPremium is set the premium is paid to the user from premiumSource, which
// the authority must control.
func (e *Engine) ForceContinue(authority types.Address, id uint64, reason string, payPremium bool, premiumSource types.Address) (*Position, error) {
	var out *Position
	_, err := e.resolve("force_continue", func(t *txn) (*Resolution, error) {
		intent, err := e.resolvable(t, authority, id, reason)
		if err != nil {
			return nil, err
		}
		mm, err := t.store.marketMaker(intent.MM)
		if err != nil {
			return nil, err
		}
		var premium uint64
		if payPremium {
			premium = intent.TotalPremium()
			if err := e.custody.Transfer(t.tx, intent.QuoteMint, premiumSource, intent.User, premium, authority); err != nil {
				return nil, err
			}
		}
		mmVault := intent.MM
		if payPremium && !premiumSource.IsZero() {
			mmVault = premiumSource
		}
		position, err := e.openPosition(t, intent, mm, premium, mmVault, e.now())
		if err != nil {
			return nil, err
		}
		t.emit(newFilledEvent(intent, position).With("forced", "true"))
		t.emit(newIntentEvent(EventTypeIntentForceContinued, intent).
			With("positionId", u64(position.ID)).
			With("reason", reason))
		t.emit(newResolvedEvent(intent, ResolutionForceContinue, authority, reason))
		out = position
		return &Resolution{IntentID: intent.ID, Type: ResolutionForceContinue, Status: intent.Status}, nil
	})
	return out, err
}

// ForceSettleNow splits the escrow by userBps at an operator-supplied price.
// The price is recorded for audit only; the split does not depend on it.
func (e *Engine) ForceSettleNow(authority types.Address, id uint64, settlementPrice uint64, userBps uint16, reason string) (*Resolution, error) {
	return e.resolve("force_settle_now", func(t *txn) (*Resolution, error) {
		if userBps > MaxBasisPoints {
			return nil, ErrInvalidPercentage
		}
		intent, err := e.resolvable(t, authority, id, reason)
		if err != nil {
			return nil, err
		}
		userAmount, mmAmount, err := e.splitEscrow(t, intent, userBps)
		if err != nil {
			return nil, err
		}
		t.emit(newPayoutEvent(EventTypeIntentForceSettled, intent, userAmount, mmAmount).
			With("settlementPrice", u64(settlementPrice)))
		t.emit(newResolvedEvent(intent, ResolutionForceSettleNow, authority, reason))
		return &Resolution{
			IntentID:   intent.ID,
			Type:       ResolutionForceSettleNow,
			UserAmount: userAmount,
			MMAmount:   mmAmount,
			Status:     intent.Status,
		}, nil
	})
}

// ProportionalSplit splits the escrow by userBps without a reference price.
func (e *Engine) ProportionalSplit(authority types.Address, id uint64, userBps uint16, reason string) (*Resolution, error) {
	return e.resolve("proportional_split", func(t *txn) (*Resolution, error) {
		if userBps > MaxBasisPoints {
			return nil, ErrInvalidPercentage
		}
		intent, err := e.resolvable(t, authority, id, reason)
		if err != nil {
			return nil, err
		}
		userAmount, mmAmount, err := e.splitEscrow(t, intent, userBps)
		if err != nil {
			return nil, err
		}
		resolution := ResolutionProportionalSplit(userBps)
		t.emit(newPayoutEvent(EventTypeIntentSplit, intent, userAmount, mmAmount).
			With("userBps", u64(uint64(userBps))))
		t.emit(newResolvedEvent(intent, resolution, authority, reason))
		return &Resolution{
			IntentID:   intent.ID,
			Type:       resolution,
			UserAmount: userAmount,
			MMAmount:   mmAmount,
			Status:     intent.Status,
		}, nil
	})
}

func (e *Engine) splitEscrow(t *txn, intent *Intent, userBps uint16) (uint64, uint64, error) {
	userAmount, mmAmount := SplitBps(intent.EscrowAmount, userBps)
	if err := e.releaseEscrow(t, intent, intent.User, userAmount); err != nil {
		return 0, 0, err
	}
	if err := e.releaseEscrow(t, intent, intent.MM, mmAmount); err != nil {
		return 0, 0, err
	}
	intent.EscrowReleased = true
	intent.Status = IntentResolvedSplit
	if err := t.putIntent(intent); err != nil {
		return 0, 0, err
	}
	return userAmount, mmAmount, nil
}

// EscrowToTreasury moves the full escrow to the protocol treasury for manual
// distribution. The intent stays Disputed but no further override may touch it.
func (e *Engine) EscrowToTreasury(authority types.Address, id uint64, reason string) (*Resolution, error) {
	return e.resolve("escrow_to_treasury", func(t *txn) (*Resolution, error) {
		intent, err := e.resolvable(t, authority, id, reason)
		if err != nil {
			return nil, err
		}
		global, err := t.config.Global()
		if err != nil {
			return nil, err
		}
		if err := e.releaseEscrow(t, intent, global.Treasury, intent.EscrowAmount); err != nil {
			return nil, err
		}
		intent.EscrowReleased = true
		intent.Status = IntentDisputed
		if err := t.putIntent(intent); err != nil {
			return nil, err
		}
		t.emit(newIntentEvent(EventTypeIntentEscrowTreasury, intent).
			With("amount", u64(intent.EscrowAmount)).
			With("treasury", global.Treasury.String()).
			With("reason", reason))
		t.emit(newResolvedEvent(intent, ResolutionEscrowToTreasury, authority, reason))
		return &Resolution{
			IntentID: intent.ID,
			Type:     ResolutionEscrowToTreasury,
			Treasury: intent.EscrowAmount,
			Status:   intent.Status,
		}, nil
	})
}

// EmergencyShutdown pauses the protocol. It does not touch any intent;
// operators unwind open intents afterwards.
func (e *Engine) EmergencyShutdown(authority types.Address, reason string) error {
	return e.execute("emergency_shutdown", func(t *txn) error {
		if _, err := requireAuthority(t.config, authority); err != nil {
			return err
		}
		if err := validateReason(reason); err != nil {
			return err
		}
		if err := t.config.SetPaused(authority, true); err != nil {
			return err
		}
		t.emit(newShutdownEvent(authority, reason, e.now()))
		return nil
	})
}
