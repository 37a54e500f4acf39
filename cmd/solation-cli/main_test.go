package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solation/core/types"
	"solation/crypto"
	"solation/rpc"
)

func TestKeygenSignQuoteRoundTrip(t *testing.T) {
	t.Setenv(keystorePassEnv, "correct horse battery staple")
	path := filepath.Join(t.TempDir(), "mm.json")

	var out bytes.Buffer
	require.NoError(t, run([]string{"keygen", "--out", path}, &out))
	require.Contains(t, out.String(), "Address:")

	err := run([]string{"keygen", "--out", path}, &out)
	require.ErrorContains(t, err, "already exists")

	var asset, quote types.Address
	asset[0], quote[0] = 0x10, 0x11
	out.Reset()
	require.NoError(t, run([]string{
		"sign-quote",
		"--key", path,
		"--asset", asset.String(),
		"--quote-mint", quote.Hex(),
		"--strategy", "PUT",
		"--strike", "50000",
		"--premium", "10",
		"--size", "2000000",
		"--expiry", "1700003600",
		"--nonce", "42",
	}, &out))

	var req rpc.SubmitIntentRequest
	require.NoError(t, json.Unmarshal(out.Bytes(), &req))
	require.Equal(t, "CASH_SECURED_PUT", req.Quote.Strategy)
	require.Equal(t, int64(1700003600), req.Quote.QuoteExpiry)
	require.Equal(t, uint64(42), req.Quote.Nonce)
	require.Equal(t, asset, req.Quote.AssetMint)
	require.Len(t, req.Batch, 1)
	require.NoError(t, crypto.VerifyBatch(req.Batch))

	key, err := crypto.LoadFromKeystore(path, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, key.PubKey(), req.MM)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv(jwtSecretEnv, "cli-secret")
	var subject types.Address
	subject[31] = 9

	var out bytes.Buffer
	require.NoError(t, run([]string{"token", "--subject", subject.String(), "--ttl", "10m"}, &out))

	auth, err := rpc.NewAuthenticator(rpc.AuthConfig{HMACSecret: "cli-secret", Issuer: "solation"}, nil)
	require.NoError(t, err)
	got, err := auth.Authenticate("Bearer " + strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, subject, got)
}

func TestParseExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	got, err := parseExpiry("90m", now)
	require.NoError(t, err)
	require.Equal(t, int64(1_700_005_400), got)

	got, err = parseExpiry("1800000000", now)
	require.NoError(t, err)
	require.Equal(t, int64(1_800_000_000), got)

	for _, raw := range []string{"", "-1h", "0", "soon"} {
		_, err := parseExpiry(raw, now)
		require.Error(t, err, raw)
	}
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	require.ErrorIs(t, run(nil, &out), errUsage)
	require.ErrorIs(t, run([]string{"frobnicate"}, &out), errUsage)
	require.NoError(t, run([]string{"help"}, &out))
	require.Contains(t, out.String(), "sign-quote")
}
