package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solation/core/state"
	"solation/core/types"
	"solation/native/bank"
	"solation/native/protocol"
	"solation/storage"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "sqlite", cfg.Journal.Driver)
	require.Equal(t, filepath.Join(cfg.DataDir, "journal.db"), cfg.Journal.DSN)
	require.Equal(t, 30*time.Second, cfg.Engine.FillWindow())
	require.Equal(t, 60*time.Second, cfg.Engine.StalenessThreshold())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `Environment = "staging"
ListenAddress = "127.0.0.1:9090"
DataDir = "/var/lib/solation"
GenesisFile = "genesis.yaml"

[Engine]
FillWindowSeconds = 45
StalenessSeconds = 20

[RPC]
JWTSecretEnv = "TEST_SECRET"
JWTIssuer = "ops"
RateLimitPerSecond = 5.5
RateLimitBurst = 10
ReadTimeoutSeconds = 3
WriteTimeoutSeconds = 4
MaxBodyBytes = 4096

[Journal]
Driver = "postgres"
DSN = "postgres://solation@localhost/journal"

[Log]
Level = "debug"

[Telemetry]
Endpoint = "collector:4318"
Traces = true
SampleRatio = 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Environment)
	require.Equal(t, "127.0.0.1:9090", cfg.ListenAddress)
	require.Equal(t, filepath.Join("/var/lib/solation", "state"), cfg.StateDir())
	require.Equal(t, 45*time.Second, cfg.Engine.FillWindow())
	require.Equal(t, 20*time.Second, cfg.Engine.StalenessThreshold())
	require.Equal(t, "TEST_SECRET", cfg.RPC.JWTSecretEnv)
	require.Equal(t, 5.5, cfg.RPC.RateLimitPerSecond)
	require.Equal(t, int64(4096), cfg.RPC.MaxBodyBytes)
	require.Equal(t, "postgres", cfg.Journal.Driver)
	require.Equal(t, "postgres://solation@localhost/journal", cfg.Journal.DSN)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
	// Omitted sections keep their defaults.
	require.Equal(t, 100, cfg.Log.MaxSizeMB)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = \":8080\"\nRPCAddress = \":9000\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "RPCAddress")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "listen", mutate: func(c *Config) { c.ListenAddress = "8080" }, want: "listen address"},
		{name: "fill window zero", mutate: func(c *Config) { c.Engine.FillWindowSeconds = 0 }, want: "fill window"},
		{name: "fill window large", mutate: func(c *Config) { c.Engine.FillWindowSeconds = MaxFillWindowSeconds + 1 }, want: "fill window"},
		{name: "staleness", mutate: func(c *Config) { c.Engine.StalenessSeconds = 0 }, want: "staleness"},
		{name: "rate", mutate: func(c *Config) { c.RPC.RateLimitPerSecond = -1 }, want: "rate limit"},
		{name: "burst", mutate: func(c *Config) { c.RPC.RateLimitBurst = 0 }, want: "burst"},
		{name: "unlimited rate ignores burst", mutate: func(c *Config) {
			c.RPC.RateLimitPerSecond = 0
			c.RPC.RateLimitBurst = 0
		}},
		{name: "body", mutate: func(c *Config) { c.RPC.MaxBodyBytes = 0 }, want: "body"},
		{name: "driver", mutate: func(c *Config) { c.Journal.Driver = "mysql" }, want: "unsupported driver"},
		{name: "dsn", mutate: func(c *Config) { c.Journal.DSN = " " }, want: "dsn"},
		{name: "journal disabled", mutate: func(c *Config) {
			c.Journal.Disabled = true
			c.Journal.Driver = "mysql"
		}},
		{name: "level", mutate: func(c *Config) { c.Log.Level = "loud" }, want: "unknown level"},
		{name: "ratio", mutate: func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, want: "sample ratio"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.applyDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	a[types.AddressLength-1] = b
	return a
}

func writeGenesis(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func sampleGenesis() string {
	feed := strings.Repeat("ab", 32)
	return fmt.Sprintf(`authority: %q
treasury: %q
protocol_fee_bps: 25
publishers:
  - %q
assets:
  - asset_mint: %q
    quote_mint: %q
    feed_id: "0x%s"
    min_strike_bps: 5000
    max_strike_bps: 20000
    min_expiry_seconds: 3600
    max_expiry_seconds: 2592000
    decimals: 6
  - asset_mint: %q
    quote_mint: %q
    feed_id: %q
    max_strike_bps: 10000
    max_expiry_seconds: 86400
    enabled: false
balances:
  - mint: %q
    account: %q
    amount: 1000000
  - mint: %q
    account: %q
    amount: 5000
`,
		addr(1).String(), addr(2).String(), addr(3).String(),
		addr(10).String(), addr(11).String(), feed,
		addr(12).String(), addr(11).String(), feed,
		addr(10).String(), addr(20).String(),
		addr(11).String(), addr(21).Hex(),
	)
}

func TestLoadGenesis(t *testing.T) {
	g, err := LoadGenesis(writeGenesis(t, sampleGenesis()))
	require.NoError(t, err)
	require.Equal(t, addr(1), g.Authority)
	require.Equal(t, addr(2), g.Treasury)
	require.Equal(t, uint16(25), g.ProtocolFeeBps)
	require.Equal(t, []types.Address{addr(3)}, g.Publishers)
	require.Len(t, g.Assets, 2)
	require.Equal(t, byte(0xab), g.Assets[0].FeedID[31])
	require.True(t, g.Assets[0].Enabled)
	require.False(t, g.Assets[1].Enabled)
	require.Equal(t, uint16(20000), g.Assets[0].MaxStrikeBps)
	require.Len(t, g.Balances, 2)
	require.Equal(t, addr(21), g.Balances[1].Account)
}

func TestLoadGenesisRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown field", body: fmt.Sprintf("authority: %q\ntreasury: %q\nextra: 1\n", addr(1), addr(2)), want: "extra"},
		{name: "authority", body: fmt.Sprintf("authority: nope\ntreasury: %q\n", addr(2)), want: "authority"},
		{name: "fee", body: fmt.Sprintf("authority: %q\ntreasury: %q\nprotocol_fee_bps: 10001\n", addr(1), addr(2)), want: "protocol_fee_bps"},
		{name: "feed", body: fmt.Sprintf("authority: %q\ntreasury: %q\nassets:\n  - asset_mint: %q\n    quote_mint: %q\n    feed_id: \"abcd\"\n", addr(1), addr(2), addr(3), addr(4)), want: "feed_id"},
		{name: "duplicate asset", body: fmt.Sprintf("authority: %q\ntreasury: %q\nassets:\n  - {asset_mint: %q, quote_mint: %q, feed_id: %q}\n  - {asset_mint: %q, quote_mint: %q, feed_id: %q}\n",
			addr(1), addr(2), addr(3), addr(4), strings.Repeat("00", 32), addr(3), addr(4), strings.Repeat("00", 32)), want: "duplicate"},
		{name: "strike range", body: fmt.Sprintf("authority: %q\ntreasury: %q\nassets:\n  - {asset_mint: %q, quote_mint: %q, feed_id: %q, min_strike_bps: 2, max_strike_bps: 1}\n",
			addr(1), addr(2), addr(3), addr(4), strings.Repeat("00", 32)), want: "strike"},
		{name: "balance account", body: fmt.Sprintf("authority: %q\ntreasury: %q\nbalances:\n  - {mint: %q, account: bad, amount: 1}\n", addr(1), addr(2), addr(3)), want: "balances[0] account"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadGenesis(writeGenesis(t, tc.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestGenesisApply(t *testing.T) {
	g, err := LoadGenesis(writeGenesis(t, sampleGenesis()))
	require.NoError(t, err)
	mgr := state.NewManager(storage.NewMemDB())

	applied, err := g.Apply(mgr)
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, mgr.View(func(tx *state.Tx) error {
		store := protocol.NewStore(tx)
		global, err := store.Global()
		require.NoError(t, err)
		require.Equal(t, addr(1), global.Authority)
		require.Equal(t, uint16(25), global.ProtocolFeeBps)
		require.False(t, global.Paused)

		asset, ok, err := store.Asset(addr(10))
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, asset.Enabled)
		disabled, ok, err := store.Asset(addr(12))
		require.NoError(t, err)
		require.True(t, ok)
		require.False(t, disabled.Enabled)

		ledger := bank.NewLedger(tx)
		bal, err := ledger.Balance(addr(10), addr(20))
		require.NoError(t, err)
		require.Equal(t, uint64(1_000_000), bal)
		bal, err = ledger.Balance(addr(11), addr(21))
		require.NoError(t, err)
		require.Equal(t, uint64(5000), bal)
		return nil
	}))

	again, err := g.Apply(mgr)
	require.NoError(t, err)
	require.False(t, again)
	require.NoError(t, mgr.View(func(tx *state.Tx) error {
		bal, err := bank.NewLedger(tx).Balance(addr(10), addr(20))
		require.NoError(t, err)
		require.Equal(t, uint64(1_000_000), bal)
		return nil
	}))
}

func TestGenesisApplyPaused(t *testing.T) {
	g := &Genesis{Authority: addr(1), Treasury: addr(2), Paused: true}
	mgr := state.NewManager(storage.NewMemDB())
	applied, err := g.Apply(mgr)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, mgr.View(func(tx *state.Tx) error {
		require.True(t, protocol.NewStore(tx).IsPaused("rfq"))
		return nil
	}))
}

func TestGenesisApplyRollsBackOnFailure(t *testing.T) {
	g := &Genesis{
		Authority: addr(1),
		Treasury:  addr(2),
		Assets: []protocol.AssetConfig{
			{AssetMint: addr(3), QuoteMint: addr(4)},
			{AssetMint: addr(3), QuoteMint: addr(4)},
		},
	}
	mgr := state.NewManager(storage.NewMemDB())
	_, err := g.Apply(mgr)
	require.ErrorIs(t, err, protocol.ErrAssetExists)
	require.NoError(t, mgr.View(func(tx *state.Tx) error {
		_, err := protocol.NewStore(tx).Global()
		require.ErrorIs(t, err, protocol.ErrNotInitialized)
		return nil
	}))
}
