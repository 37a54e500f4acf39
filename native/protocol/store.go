package protocol

import (
	"errors"
	"fmt"

	"solation/core/types"
)

// storage abstracts the subset of state functionality required by the store.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	globalKey     = []byte("protocol/global")
	assetIndexKey = []byte("protocol/assets")
	assetPrefix   = []byte("protocol/asset/")
)

var (
	ErrNotInitialized     = errors.New("protocol: global state not initialized")
	ErrAlreadyInitialized = errors.New("protocol: global state already initialized")
	ErrUnauthorized       = errors.New("protocol: caller is not the authority")
	ErrInvalidFee         = errors.New("protocol: fee exceeds 10000 bps")
	ErrInvalidAsset       = errors.New("protocol: asset and quote mints required")
	ErrInvalidStrikeRange = errors.New("protocol: invalid strike range")
	ErrInvalidExpiryRange = errors.New("protocol: invalid expiry range")
	ErrAssetExists        = errors.New("protocol: asset already configured")
	ErrAssetNotFound      = errors.New("protocol: asset not configured")
	errNilStorage         = errors.New("protocol: storage not configured")
)

func assetKey(mint types.Address) []byte {
	return append(append([]byte(nil), assetPrefix...), mint[:]...)
}

type assetIndex struct {
	Mints []types.Address
}

// Store reads and writes protocol configuration inside one transaction.
type Store struct {
	store storage
}

// NewStore binds a configuration store to the provided backend.
func NewStore(store storage) *Store {
	return &Store{store: store}
}

func (s *Store) withState() (storage, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	return s.store, nil
}

// Initialize writes the initial global state. It may only run once.
func (s *Store) Initialize(authority, treasury types.Address, feeBps uint16) (*GlobalState, error) {
	st, err := s.withState()
	if err != nil {
		return nil, err
	}
	if ok, err := st.KVGet(globalKey, nil); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if feeBps > MaxBasisPoints {
		return nil, ErrInvalidFee
	}
	if authority.IsZero() {
		return nil, fmt.Errorf("protocol: authority required")
	}
	global := &GlobalState{Authority: authority, Treasury: treasury, ProtocolFeeBps: feeBps}
	if err := st.KVPut(globalKey, global); err != nil {
		return nil, err
	}
	return global, nil
}

// Global loads the global state.
func (s *Store) Global() (*GlobalState, error) {
	st, err := s.withState()
	if err != nil {
		return nil, err
	}
	var global GlobalState
	ok, err := st.KVGet(globalKey, &global)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return &global, nil
}

// RequireAuthority loads the global state and checks caller against the
// configured authority.
func (s *Store) RequireAuthority(caller types.Address) (*GlobalState, error) {
	global, err := s.Global()
	if err != nil {
		return nil, err
	}
	if caller != global.Authority {
		return nil, ErrUnauthorized
	}
	return global, nil
}

// UpdateGlobal applies update on behalf of caller.
func (s *Store) UpdateGlobal(caller types.Address, update GlobalUpdate) (*GlobalState, error) {
	global, err := s.RequireAuthority(caller)
	if err != nil {
		return nil, err
	}
	if update.Authority != nil {
		if update.Authority.IsZero() {
			return nil, fmt.Errorf("protocol: authority required")
		}
		global.Authority = *update.Authority
	}
	if update.Treasury != nil {
		global.Treasury = *update.Treasury
	}
	if update.ProtocolFeeBps != nil {
		if *update.ProtocolFeeBps > MaxBasisPoints {
			return nil, ErrInvalidFee
		}
		global.ProtocolFeeBps = *update.ProtocolFeeBps
	}
	if update.Paused != nil {
		global.Paused = *update.Paused
	}
	if err := s.store.KVPut(globalKey, global); err != nil {
		return nil, err
	}
	return global, nil
}

// SetPaused flips the protocol-wide pause switch.
func (s *Store) SetPaused(caller types.Address, paused bool) error {
	_, err := s.UpdateGlobal(caller, GlobalUpdate{Paused: &paused})
	return err
}

// IsPaused implements common.PauseView. The switch is protocol wide, so every
// module reports the same value. Unreadable state is treated as paused.
func (s *Store) IsPaused(string) bool {
	global, err := s.Global()
	if err != nil {
		return !errors.Is(err, ErrNotInitialized)
	}
	return global.Paused
}

// AddAsset registers a new asset configuration. New assets start enabled.
func (s *Store) AddAsset(caller types.Address, cfg AssetConfig) (*AssetConfig, error) {
	if _, err := s.RequireAuthority(caller); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ok, err := s.store.KVGet(assetKey(cfg.AssetMint), nil); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAssetExists
	}
	cfg.Enabled = true
	if err := s.store.KVPut(assetKey(cfg.AssetMint), &cfg); err != nil {
		return nil, err
	}
	var index assetIndex
	if _, err := s.store.KVGet(assetIndexKey, &index); err != nil {
		return nil, err
	}
	index.Mints = append(index.Mints, cfg.AssetMint)
	if err := s.store.KVPut(assetIndexKey, &index); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateAsset applies update to the asset identified by mint.
func (s *Store) UpdateAsset(caller, mint types.Address, update AssetUpdate) (*AssetConfig, error) {
	if _, err := s.RequireAuthority(caller); err != nil {
		return nil, err
	}
	cfg, ok, err := s.Asset(mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAssetNotFound
	}
	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	if update.MinStrikeBps != nil {
		cfg.MinStrikeBps = *update.MinStrikeBps
	}
	if update.MaxStrikeBps != nil {
		cfg.MaxStrikeBps = *update.MaxStrikeBps
	}
	if update.MinExpirySeconds != nil {
		cfg.MinExpirySeconds = *update.MinExpirySeconds
	}
	if update.MaxExpirySeconds != nil {
		cfg.MaxExpirySeconds = *update.MaxExpirySeconds
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := s.store.KVPut(assetKey(mint), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Asset loads the configuration for mint.
func (s *Store) Asset(mint types.Address) (*AssetConfig, bool, error) {
	st, err := s.withState()
	if err != nil {
		return nil, false, err
	}
	var cfg AssetConfig
	ok, err := st.KVGet(assetKey(mint), &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

// Assets returns every configured asset in registration order.
func (s *Store) Assets() ([]*AssetConfig, error) {
	st, err := s.withState()
	if err != nil {
		return nil, err
	}
	var index assetIndex
	if _, err := st.KVGet(assetIndexKey, &index); err != nil {
		return nil, err
	}
	out := make([]*AssetConfig, 0, len(index.Mints))
	for _, mint := range index.Mints {
		cfg, ok, err := s.Asset(mint)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}
