package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"solation/storage"
)

// KV is the record-level view handed to modules inside a transaction. Values
// are RLP encoded, so stored structs must only use RLP-serialisable fields
// (unsigned integers, bools, strings, byte arrays and slices).
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var errReadOnly = errors.New("kv: transaction is read-only")

// Manager serialises state mutations against the backing database. Every
// Update runs as a single unit: reads observe the transaction's own pending
// writes, and the writes are committed with one storage batch only when the
// callback returns nil. Writers are exclusive; readers share.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn inside an exclusive read-write transaction.
func (m *Manager) Update(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn inside a shared read-only transaction.
func (m *Manager) View(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return errors.New("state: manager not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}

// Tx buffers writes until commit.
type Tx struct {
	db       storage.Database
	readOnly bool
	writes   map[string][]byte
	deletes  map[string]struct{}
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{
		db:       db,
		readOnly: readOnly,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	buf := make([]byte, 0, len(key)+3)
	buf = append(buf, "kv:"...)
	buf = append(buf, key...)
	return ethcrypto.Keccak256(buf)
}

func (tx *Tx) raw(hashed []byte) ([]byte, error) {
	k := string(hashed)
	if _, deleted := tx.deletes[k]; deleted {
		return nil, nil
	}
	if data, ok := tx.writes[k]; ok {
		return data, nil
	}
	data, err := tx.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so module prefixes cannot collide with
// arbitrary user-controlled suffixes.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if tx.readOnly {
		return errReadOnly
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	k := string(kvKey(key))
	delete(tx.deletes, k)
	tx.writes[k] = encoded
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key. Removing a missing key is a no-op.
func (tx *Tx) KVDelete(key []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	k := string(kvKey(key))
	delete(tx.writes, k)
	tx.deletes[k] = struct{}{}
	return nil
}

// KVAppend appends value to the RLP-encoded byte slice list stored under key.
// Duplicate values are ignored to keep the index deterministic.
func (tx *Tx) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := tx.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return tx.KVPut(key, list)
}

// KVRemove drops value from the list stored under key.
func (tx *Tx) KVRemove(key []byte, value []byte) error {
	var list [][]byte
	found, err := tx.KVGet(key, &list)
	if err != nil || !found {
		return err
	}
	kept := list[:0]
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		return tx.KVDelete(key)
	}
	return tx.KVPut(key, kept)
}

// KVGetList returns the byte-slice list stored under key, or an empty list.
func (tx *Tx) KVGetList(key []byte) ([][]byte, error) {
	var list [][]byte
	if _, err := tx.KVGet(key, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = [][]byte{}
	}
	return list, nil
}

func (tx *Tx) commit() error {
	if tx.readOnly || (len(tx.writes) == 0 && len(tx.deletes) == 0) {
		return nil
	}
	batch := tx.db.NewBatch()
	for k, v := range tx.writes {
		batch.Put([]byte(k), v)
	}
	for k := range tx.deletes {
		batch.Delete([]byte(k))
	}
	return batch.Write()
}
