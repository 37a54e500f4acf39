package rfq

import (
	"errors"

	"solation/core/types"
)

// RegisterMM creates the registry record and nonce window for owner.
func (e *Engine) RegisterMM(owner, signingKey types.Address) (*MarketMaker, error) {
	var out *MarketMaker
	err := e.execute("register_mm", func(t *txn) error {
		if signingKey.IsZero() {
			return ErrInvalidSigningKey
		}
		if _, err := t.store.marketMaker(owner); err == nil {
			return ErrMMAlreadyRegistered
		} else if !errors.Is(err, ErrMMNotRegistered) {
			return err
		}
		now := e.now()
		mm := &MarketMaker{
			Owner:        owner,
			SigningKey:   signingKey,
			Active:       true,
			Reputation:   InitialReputation,
			RegisteredAt: now,
			LastActive:   now,
		}
		if err := t.store.putMarketMaker(mm); err != nil {
			return err
		}
		if err := t.store.putNonceTracker(&NonceTracker{MM: owner}); err != nil {
			return err
		}
		t.emit(newMMEvent(EventTypeMMRegistered, mm))
		out = mm
		return nil
	})
	return out, err
}

// UpdateSigningKey rotates the key that authenticates owner's quotes. Intents
// already created keep the signature they were validated with.
func (e *Engine) UpdateSigningKey(owner, signingKey types.Address) (*MarketMaker, error) {
	var out *MarketMaker
	err := e.execute("update_signing_key", func(t *txn) error {
		if signingKey.IsZero() {
			return ErrInvalidSigningKey
		}
		mm, err := t.store.marketMaker(owner)
		if err != nil {
			return err
		}
		mm.SigningKey = signingKey
		mm.LastActive = e.now()
		if err := t.store.putMarketMaker(mm); err != nil {
			return err
		}
		t.emit(newMMEvent(EventTypeMMSigningKeyUpdated, mm))
		out = mm
		return nil
	})
	return out, err
}

// SetMMActive lets the authority suspend or reinstate a market maker.
func (e *Engine) SetMMActive(authority, owner types.Address, active bool) (*MarketMaker, error) {
	var out *MarketMaker
	err := e.execute("set_mm_active", func(t *txn) error {
		if _, err := requireAuthority(t.config, authority); err != nil {
			return err
		}
		mm, err := t.store.marketMaker(owner)
		if err != nil {
			return err
		}
		mm.Active = active
		if err := t.store.putMarketMaker(mm); err != nil {
			return err
		}
		t.emit(newMMEvent(EventTypeMMActivityChanged, mm).With("changedBy", authority.String()))
		out = mm
		return nil
	})
	return out, err
}
