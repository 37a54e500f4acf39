package bank

import (
	"errors"
	"math"
	"testing"

	"solation/core/types"
)

type mockStore struct {
	data map[string]uint64
	recs map[string]ownerRecord
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]uint64), recs: make(map[string]ownerRecord)}
}

func (m *mockStore) KVGet(key []byte, out interface{}) (bool, error) {
	switch dst := out.(type) {
	case *uint64:
		v, ok := m.data[string(key)]
		*dst = v
		return ok, nil
	case *ownerRecord:
		v, ok := m.recs[string(key)]
		*dst = v
		return ok, nil
	}
	return false, errors.New("unsupported type")
}

func (m *mockStore) KVPut(key []byte, value interface{}) error {
	switch v := value.(type) {
	case uint64:
		m.data[string(key)] = v
	case *ownerRecord:
		m.recs[string(key)] = *v
	default:
		return errors.New("unsupported type")
	}
	return nil
}

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestTransferMovesBalance(t *testing.T) {
	ledger := NewLedger(newMockStore())
	mint, alice, bob := addr(1), addr(2), addr(3)
	if err := ledger.Credit(mint, alice, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Transfer(mint, alice, bob, alice, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got, _ := ledger.Balance(mint, alice); got != 60 {
		t.Fatalf("alice balance = %d", got)
	}
	if got, _ := ledger.Balance(mint, bob); got != 40 {
		t.Fatalf("bob balance = %d", got)
	}
	if got, _ := ledger.Supply(mint); got != 100 {
		t.Fatalf("supply = %d", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger := NewLedger(newMockStore())
	mint, alice, bob := addr(1), addr(2), addr(3)
	_ = ledger.Credit(mint, alice, 10)
	err := ledger.Transfer(mint, alice, bob, alice, 11)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got, _ := ledger.Balance(mint, alice); got != 10 {
		t.Fatalf("balance changed: %d", got)
	}
}

func TestTransferRequiresController(t *testing.T) {
	ledger := NewLedger(newMockStore())
	mint, vault, program, mallory := addr(1), addr(2), addr(3), addr(4)
	_ = ledger.Credit(mint, vault, 50)
	if err := ledger.Assign(vault, program); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := ledger.Transfer(mint, vault, mallory, mallory, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := ledger.Transfer(mint, vault, mallory, vault, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("assigned account must not self-authorise, got %v", err)
	}
	if err := ledger.Transfer(mint, vault, mallory, program, 50); err != nil {
		t.Fatalf("owner transfer: %v", err)
	}
	owner, ok, err := ledger.Owner(vault)
	if err != nil || !ok || owner != program {
		t.Fatalf("unexpected owner %v %v %v", owner, ok, err)
	}
}

func TestZeroTransferIsNoop(t *testing.T) {
	ledger := NewLedger(newMockStore())
	if err := ledger.Transfer(addr(1), addr(2), addr(3), addr(2), 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestCreditOverflow(t *testing.T) {
	ledger := NewLedger(newMockStore())
	mint, alice := addr(1), addr(2)
	if err := ledger.Credit(mint, alice, math.MaxUint64); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Credit(mint, alice, 1); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
