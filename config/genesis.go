package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"solation/core/state"
	"solation/core/types"
	"solation/native/bank"
	"solation/native/protocol"
)

// Genesis seeds the protocol state on first start.
type Genesis struct {
	Authority      types.Address
	Treasury       types.Address
	ProtocolFeeBps uint16
	Paused         bool
	Publishers     []types.Address
	Assets         []protocol.AssetConfig
	Balances       []Balance
}

// Balance is an initial custody credit.
type Balance struct {
	Mint    types.Address
	Account types.Address
	Amount  uint64
}

// genesisFile mirrors the YAML representation of the genesis document.
type genesisFile struct {
	Authority      string        `yaml:"authority"`
	Treasury       string        `yaml:"treasury"`
	ProtocolFeeBps uint16        `yaml:"protocol_fee_bps"`
	Paused         bool          `yaml:"paused"`
	Publishers     []string      `yaml:"publishers"`
	Assets         []assetFile   `yaml:"assets"`
	Balances       []balanceFile `yaml:"balances"`
}

type assetFile struct {
	AssetMint        string `yaml:"asset_mint"`
	QuoteMint        string `yaml:"quote_mint"`
	FeedID           string `yaml:"feed_id"`
	MinStrikeBps     uint16 `yaml:"min_strike_bps"`
	MaxStrikeBps     uint16 `yaml:"max_strike_bps"`
	MinExpirySeconds uint64 `yaml:"min_expiry_seconds"`
	MaxExpirySeconds uint64 `yaml:"max_expiry_seconds"`
	Decimals         uint8  `yaml:"decimals"`
	Enabled          *bool  `yaml:"enabled"`
}

type balanceFile struct {
	Mint    string `yaml:"mint"`
	Account string `yaml:"account"`
	Amount  uint64 `yaml:"amount"`
}

// LoadGenesis reads and validates the genesis document at path.
func LoadGenesis(path string) (*Genesis, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genesis: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	var raw genesisFile
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return raw.parse()
}

func (f *genesisFile) parse() (*Genesis, error) {
	authority, err := types.ParseAddress(f.Authority)
	if err != nil {
		return nil, fmt.Errorf("genesis authority: %w", err)
	}
	treasury, err := types.ParseAddress(f.Treasury)
	if err != nil {
		return nil, fmt.Errorf("genesis treasury: %w", err)
	}
	if f.ProtocolFeeBps > protocol.MaxBasisPoints {
		return nil, fmt.Errorf("genesis protocol_fee_bps %d exceeds %d", f.ProtocolFeeBps, protocol.MaxBasisPoints)
	}
	g := &Genesis{
		Authority:      authority,
		Treasury:       treasury,
		ProtocolFeeBps: f.ProtocolFeeBps,
		Paused:         f.Paused,
	}
	for i, raw := range f.Publishers {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("genesis publishers[%d]: %w", i, err)
		}
		g.Publishers = append(g.Publishers, addr)
	}
	seen := make(map[types.Address]struct{})
	for i, entry := range f.Assets {
		asset, err := entry.parse()
		if err != nil {
			return nil, fmt.Errorf("genesis assets[%d]: %w", i, err)
		}
		if _, exists := seen[asset.AssetMint]; exists {
			return nil, fmt.Errorf("genesis assets[%d]: duplicate asset %s", i, asset.AssetMint)
		}
		seen[asset.AssetMint] = struct{}{}
		g.Assets = append(g.Assets, asset)
	}
	for i, entry := range f.Balances {
		mint, err := types.ParseAddress(entry.Mint)
		if err != nil {
			return nil, fmt.Errorf("genesis balances[%d] mint: %w", i, err)
		}
		account, err := types.ParseAddress(entry.Account)
		if err != nil {
			return nil, fmt.Errorf("genesis balances[%d] account: %w", i, err)
		}
		g.Balances = append(g.Balances, Balance{Mint: mint, Account: account, Amount: entry.Amount})
	}
	return g, nil
}

func (a assetFile) parse() (protocol.AssetConfig, error) {
	var cfg protocol.AssetConfig
	var err error
	if cfg.AssetMint, err = types.ParseAddress(a.AssetMint); err != nil {
		return cfg, fmt.Errorf("asset_mint: %w", err)
	}
	if cfg.QuoteMint, err = types.ParseAddress(a.QuoteMint); err != nil {
		return cfg, fmt.Errorf("quote_mint: %w", err)
	}
	feed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(a.FeedID), "0x"))
	if err != nil || len(feed) != len(cfg.FeedID) {
		return cfg, fmt.Errorf("feed_id must be %d hex-encoded bytes", len(cfg.FeedID))
	}
	copy(cfg.FeedID[:], feed)
	cfg.MinStrikeBps = a.MinStrikeBps
	cfg.MaxStrikeBps = a.MaxStrikeBps
	cfg.MinExpirySeconds = a.MinExpirySeconds
	cfg.MaxExpirySeconds = a.MaxExpirySeconds
	cfg.Decimals = a.Decimals
	cfg.Enabled = a.Enabled == nil || *a.Enabled
	if cfg.MinStrikeBps > cfg.MaxStrikeBps {
		return cfg, protocol.ErrInvalidStrikeRange
	}
	if cfg.MinExpirySeconds > cfg.MaxExpirySeconds {
		return cfg, protocol.ErrInvalidExpiryRange
	}
	return cfg, nil
}

var errGenesisApplied = errors.New("genesis already applied")

// Apply writes the genesis state in a single transaction. It reports false
// without touching state when the protocol was initialised earlier.
func (g *Genesis) Apply(mgr *state.Manager) (bool, error) {
	err := mgr.Update(func(tx *state.Tx) error {
		store := protocol.NewStore(tx)
		if _, err := store.Initialize(g.Authority, g.Treasury, g.ProtocolFeeBps); err != nil {
			if errors.Is(err, protocol.ErrAlreadyInitialized) {
				return errGenesisApplied
			}
			return err
		}
		for _, asset := range g.Assets {
			added, err := store.AddAsset(g.Authority, asset)
			if err != nil {
				return fmt.Errorf("add asset %s: %w", asset.AssetMint, err)
			}
			if !asset.Enabled {
				disabled := false
				if _, err := store.UpdateAsset(g.Authority, added.AssetMint, protocol.AssetUpdate{Enabled: &disabled}); err != nil {
					return err
				}
			}
		}
		ledger := bank.NewLedger(tx)
		for _, bal := range g.Balances {
			if err := ledger.Credit(bal.Mint, bal.Account, bal.Amount); err != nil {
				return fmt.Errorf("credit %s: %w", bal.Account, err)
			}
		}
		if g.Paused {
			return store.SetPaused(g.Authority, true)
		}
		return nil
	})
	if errors.Is(err, errGenesisApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
