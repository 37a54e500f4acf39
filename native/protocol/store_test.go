package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solation/core/state"
	"solation/core/types"
	"solation/native/common"
	kvstorage "solation/storage"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestInitializeAndUpdateGlobal(t *testing.T) {
	mgr := state.NewManager(kvstorage.NewMemDB())
	authority, treasury, other := addr(1), addr(2), addr(3)

	require.NoError(t, mgr.Update(func(tx *state.Tx) error {
		store := NewStore(tx)
		require.False(t, store.IsPaused("rfq"))
		_, err := store.Initialize(authority, treasury, 25)
		return err
	}))

	require.NoError(t, mgr.Update(func(tx *state.Tx) error {
		store := NewStore(tx)
		_, err := store.Initialize(authority, treasury, 25)
		require.ErrorIs(t, err, ErrAlreadyInitialized)

		fee := uint16(10_001)
		_, err = store.UpdateGlobal(authority, GlobalUpdate{ProtocolFeeBps: &fee})
		require.ErrorIs(t, err, ErrInvalidFee)

		require.ErrorIs(t, store.SetPaused(other, true), ErrUnauthorized)
		require.NoError(t, store.SetPaused(authority, true))
		require.True(t, store.IsPaused("rfq"))
		require.ErrorIs(t, common.Guard(store, "rfq"), common.ErrModulePaused)

		global, err := store.UpdateGlobal(authority, GlobalUpdate{Authority: &other})
		require.NoError(t, err)
		require.Equal(t, other, global.Authority)
		require.Equal(t, treasury, global.Treasury)
		require.Equal(t, uint16(25), global.ProtocolFeeBps)
		return nil
	}))
}

func TestAssetLifecycle(t *testing.T) {
	mgr := state.NewManager(kvstorage.NewMemDB())
	authority := addr(1)
	cfg := AssetConfig{
		AssetMint:        addr(10),
		QuoteMint:        addr(11),
		FeedID:           [32]byte{0xAA},
		MinStrikeBps:     8_000,
		MaxStrikeBps:     12_000,
		MinExpirySeconds: 3600,
		MaxExpirySeconds: 86_400 * 30,
		Decimals:         9,
	}

	require.NoError(t, mgr.Update(func(tx *state.Tx) error {
		store := NewStore(tx)
		_, err := store.AddAsset(authority, cfg)
		require.ErrorIs(t, err, ErrNotInitialized)
		_, err = store.Initialize(authority, addr(2), 0)
		require.NoError(t, err)

		bad := cfg
		bad.MinStrikeBps = 13_000
		_, err = store.AddAsset(authority, bad)
		require.ErrorIs(t, err, ErrInvalidStrikeRange)

		added, err := store.AddAsset(authority, cfg)
		require.NoError(t, err)
		require.True(t, added.Enabled)
		_, err = store.AddAsset(authority, cfg)
		require.ErrorIs(t, err, ErrAssetExists)
		return nil
	}))

	require.NoError(t, mgr.Update(func(tx *state.Tx) error {
		store := NewStore(tx)
		disabled := false
		updated, err := store.UpdateAsset(authority, cfg.AssetMint, AssetUpdate{Enabled: &disabled})
		require.NoError(t, err)
		require.False(t, updated.Enabled)

		minExpiry := uint64(86_400 * 31)
		_, err = store.UpdateAsset(authority, cfg.AssetMint, AssetUpdate{MinExpirySeconds: &minExpiry})
		require.ErrorIs(t, err, ErrInvalidExpiryRange)

		_, err = store.UpdateAsset(authority, addr(99), AssetUpdate{})
		require.ErrorIs(t, err, ErrAssetNotFound)
		return nil
	}))

	require.NoError(t, mgr.View(func(tx *state.Tx) error {
		store := NewStore(tx)
		got, ok, err := store.Asset(cfg.AssetMint)
		require.NoError(t, err)
		require.True(t, ok)
		require.False(t, got.Enabled)
		require.Equal(t, cfg.FeedID, got.FeedID)
		require.Equal(t, uint8(9), got.Decimals)

		all, err := store.Assets()
		require.NoError(t, err)
		require.Len(t, all, 1)
		return nil
	}))
}
