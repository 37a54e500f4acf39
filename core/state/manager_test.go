package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"solation/storage"
)

type record struct {
	Name  string
	Count uint64
	Flag  bool
}

func TestUpdateCommitsAtomically(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		if err := tx.KVPut([]byte("a"), &record{Name: "a", Count: 1}); err != nil {
			return err
		}
		var got record
		ok, err := tx.KVGet([]byte("a"), &got)
		require.True(t, ok)
		require.Equal(t, uint64(1), got.Count)
		return err
	}))

	var got record
	require.NoError(t, mgr.View(func(tx *Tx) error {
		ok, err := tx.KVGet([]byte("a"), &got)
		require.True(t, ok)
		return err
	}))
	require.Equal(t, "a", got.Name)
}

func TestUpdateDiscardsOnError(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	boom := errors.New("boom")

	err := mgr.Update(func(tx *Tx) error {
		require.NoError(t, tx.KVPut([]byte("a"), &record{Name: "lost"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, mgr.View(func(tx *Tx) error {
		ok, err := tx.KVGet([]byte("a"), &record{})
		require.False(t, ok)
		return err
	}))
}

func TestViewIsReadOnly(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	err := mgr.View(func(tx *Tx) error {
		return tx.KVPut([]byte("a"), &record{})
	})
	require.Error(t, err)
}

func TestDeleteAndLists(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	key := []byte("list")

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		require.NoError(t, tx.KVAppend(key, []byte{1}))
		require.NoError(t, tx.KVAppend(key, []byte{2}))
		require.NoError(t, tx.KVAppend(key, []byte{1}))
		list, err := tx.KVGetList(key)
		require.NoError(t, err)
		require.Len(t, list, 2)
		return tx.KVRemove(key, []byte{1})
	}))

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		list, err := tx.KVGetList(key)
		require.NoError(t, err)
		require.Equal(t, [][]byte{{2}}, list)
		require.NoError(t, tx.KVRemove(key, []byte{2}))
		list, err = tx.KVGetList(key)
		require.NoError(t, err)
		require.Empty(t, list)
		return nil
	}))

	require.NoError(t, mgr.Update(func(tx *Tx) error {
		require.NoError(t, tx.KVPut([]byte("x"), uint64(5)))
		require.NoError(t, tx.KVDelete([]byte("x")))
		ok, err := tx.KVGet([]byte("x"), new(uint64))
		require.False(t, ok)
		return err
	}))
}

func TestConcurrentUpdatesSerialise(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	key := []byte("counter")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Update(func(tx *Tx) error {
				var n uint64
				if _, err := tx.KVGet(key, &n); err != nil {
					return err
				}
				return tx.KVPut(key, n+1)
			})
		}()
	}
	wg.Wait()

	var n uint64
	require.NoError(t, mgr.View(func(tx *Tx) error {
		_, err := tx.KVGet(key, &n)
		return err
	}))
	require.Equal(t, uint64(50), n)
}
