package bank

import (
	"fmt"

	"solation/core/state"
	"solation/core/types"
)

// Transfer moves amount of mint from one account to another. The authorizer
// must be the source account itself or, for assigned accounts, its owner.
// Zero-value transfers are accepted and leave state untouched.
func (l *Ledger) Transfer(mint, from, to, authorizer types.Address, amount uint64) error {
	if l == nil || l.store == nil {
		return errNilStorage
	}
	if err := l.authorize(from, authorizer); err != nil {
		return err
	}
	if amount == 0 || from == to {
		return nil
	}
	if err := l.sub(mint, from, amount); err != nil {
		return err
	}
	return l.add(mint, to, amount)
}

func (l *Ledger) authorize(from, authorizer types.Address) error {
	owner, assigned, err := l.Owner(from)
	if err != nil {
		return err
	}
	controller := from
	if assigned {
		controller = owner
	}
	if authorizer != controller {
		return fmt.Errorf("%w: %s does not control %s", ErrUnauthorized, authorizer, from)
	}
	return nil
}

// Custody adapts a transaction-scoped store into the custody primitive used
// by protocol modules.
type Custody struct{}

// Transfer implements the custody primitive against the ledger bound to kv.
func (Custody) Transfer(kv state.KV, mint, from, to types.Address, amount uint64, authorizer types.Address) error {
	return NewLedger(kv).Transfer(mint, from, to, authorizer, amount)
}

// Assign hands control of account to owner within kv.
func (Custody) Assign(kv state.KV, account, owner types.Address) error {
	return NewLedger(kv).Assign(account, owner)
}

// Balance reads the balance of account within kv.
func (Custody) Balance(kv state.KV, mint, account types.Address) (uint64, error) {
	return NewLedger(kv).Balance(mint, account)
}
