package bank

import (
	"errors"
	"fmt"
	"math"

	"solation/core/types"
)

// storage abstracts the subset of state functionality required by the ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix = []byte("bank/balance/")
	supplyPrefix  = []byte("bank/supply/")
	ownerPrefix   = []byte("bank/owner/")
)

var (
	// ErrInsufficientBalance is returned when the source account cannot cover a
	// debit.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrUnauthorized marks transfers whose authorizer does not control the
	// source account.
	ErrUnauthorized = errors.New("bank: transfer not authorized")
	// ErrBalanceOverflow is returned when a credit would exceed the u64 range.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
	errNilStorage      = errors.New("bank: storage not configured")
)

func balanceKey(mint, account types.Address) []byte {
	key := make([]byte, 0, len(balancePrefix)+2*types.AddressLength+1)
	key = append(key, balancePrefix...)
	key = append(key, mint[:]...)
	key = append(key, '/')
	return append(key, account[:]...)
}

func supplyKey(mint types.Address) []byte {
	return append(append([]byte(nil), supplyPrefix...), mint[:]...)
}

func ownerKey(account types.Address) []byte {
	return append(append([]byte(nil), ownerPrefix...), account[:]...)
}

// Ledger tracks fungible balances per (mint, account) pair on top of the
// transactional key-value store. A ledger is bound to one transaction.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the amount of mint held by account.
func (l *Ledger) Balance(mint, account types.Address) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, errNilStorage
	}
	var amount uint64
	if _, err := l.store.KVGet(balanceKey(mint, account), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Supply returns the total amount of mint credited into existence.
func (l *Ledger) Supply(mint types.Address) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, errNilStorage
	}
	var amount uint64
	if _, err := l.store.KVGet(supplyKey(mint), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Credit mints amount of mint into account. It is used for genesis allocations
// and faucet-style funding; protocol flows only ever move existing balances.
func (l *Ledger) Credit(mint, account types.Address, amount uint64) error {
	if l == nil || l.store == nil {
		return errNilStorage
	}
	if amount == 0 {
		return nil
	}
	supply, err := l.Supply(mint)
	if err != nil {
		return err
	}
	if supply > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	if err := l.add(mint, account, amount); err != nil {
		return err
	}
	return l.store.KVPut(supplyKey(mint), supply+amount)
}

func (l *Ledger) add(mint, account types.Address, amount uint64) error {
	balance, err := l.Balance(mint, account)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	return l.store.KVPut(balanceKey(mint, account), balance+amount)
}

func (l *Ledger) sub(mint, account types.Address, amount uint64) error {
	balance, err := l.Balance(mint, account)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}
	return l.store.KVPut(balanceKey(mint, account), balance-amount)
}

type ownerRecord struct {
	Owner types.Address
}

// Assign hands control of account to owner. Once assigned, only the owner may
// authorise transfers out of the account.
func (l *Ledger) Assign(account, owner types.Address) error {
	if l == nil || l.store == nil {
		return errNilStorage
	}
	return l.store.KVPut(ownerKey(account), &ownerRecord{Owner: owner})
}

// Owner returns the controller assigned to account, if any.
func (l *Ledger) Owner(account types.Address) (types.Address, bool, error) {
	if l == nil || l.store == nil {
		return types.Address{}, false, errNilStorage
	}
	var rec ownerRecord
	ok, err := l.store.KVGet(ownerKey(account), &rec)
	if err != nil || !ok {
		return types.Address{}, false, err
	}
	return rec.Owner, true, nil
}
