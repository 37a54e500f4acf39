package rfq

import (
	"context"
	"errors"
	"fmt"

	"solation/core/types"
	"solation/native/oracle"
)

// SettlePosition settles an expired position against the oracle price of its
// asset. Settlement is permissionless; settler is recorded for audit.
//
// The oracle is consulted outside the state transaction, and the position is
// re-checked inside it, so a concurrent settlement fails with
// ErrPositionNotActive instead of paying twice.
func (e *Engine) SettlePosition(ctx context.Context, settler types.Address, id uint64) (*Settlement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.oracle == nil {
		return nil, errors.New("rfq engine: price oracle not configured")
	}

	var feedID [32]byte
	err := e.view(func(s store, cfg Config) error {
		position, err := s.position(id)
		if err != nil {
			return err
		}
		if position.Status != PositionActive {
			return ErrPositionNotActive
		}
		if e.now() < position.ExpiryTimestamp {
			return ErrPositionNotExpired
		}
		asset, ok, err := cfg.Asset(position.AssetMint)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAssetNotEnabled
		}
		feedID = asset.FeedID
		return nil
	})
	if err != nil {
		e.metrics.RecordOperation("settle_position", err)
		return nil, err
	}

	update, err := e.oracle.LatestPrice(ctx, feedID)
	if err != nil {
		if errors.Is(err, oracle.ErrFeedNotFound) {
			err = fmt.Errorf("%w: %v", ErrPythFeedIdMismatch, err)
		}
		e.metrics.RecordOperation("settle_position", err)
		return nil, err
	}

	var out *Settlement
	err = e.execute("settle_position", func(t *txn) error {
		position, err := t.store.position(id)
		if err != nil {
			return err
		}
		if position.Status != PositionActive {
			return ErrPositionNotActive
		}
		now := e.now()
		if now < position.ExpiryTimestamp {
			return ErrPositionNotExpired
		}
		if now-update.PublishTime >= e.staleness {
			return ErrPriceTooStale
		}
		if update.FeedID != feedID {
			return ErrPythFeedIdMismatch
		}
		price := update.Magnitude()

		vault, err := e.vaultBalance(t, position)
		if err != nil {
			return err
		}
		userAmount, mmAmount, status := SettlementAmounts(position.Strategy, price, position.StrikePrice, vault)
		if userAmount > 0 {
			if err := e.custody.Transfer(t.tx, position.CollateralMint, position.UserVault, position.User, userAmount, ProgramAddress); err != nil {
				return err
			}
		}
		if mmAmount > 0 {
			if err := e.custody.Transfer(t.tx, position.CollateralMint, position.UserVault, position.MM, mmAmount, ProgramAddress); err != nil {
				return err
			}
		}
		position.SettlementPrice = &price
		position.UserPayout = userAmount
		position.MMPayout = mmAmount
		position.SettledAt = now
		position.Status = status
		if err := t.store.putPosition(position); err != nil {
			return err
		}
		t.emit(newSettledEvent(position, settler))
		out = &Settlement{
			PositionID:  position.ID,
			Price:       price,
			PublishTime: update.PublishTime,
			UserAmount:  userAmount,
			MMAmount:    mmAmount,
			Status:      status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordSettlement(out.Status.String(), out.UserAmount, out.MMAmount)
	return out, nil
}

// vaultBalance returns the collateral actually held for the position.
func (e *Engine) vaultBalance(t *txn, p *Position) (uint64, error) {
	return e.custody.Balance(t.tx, p.CollateralMint, p.UserVault)
}
