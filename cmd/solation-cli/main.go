package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"solation/cmd/internal/passphrase"
	"solation/core/batch"
	"solation/core/types"
	"solation/crypto"
	"solation/native/rfq"
	"solation/rpc"
)

const (
	keystorePassEnv = "SOLATION_KEY_PASS"
	jwtSecretEnv    = "SOLATION_JWT_SECRET"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: solation-cli <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen      --out <keystore>                     generate an ed25519 signing key")
	fmt.Fprintln(w, "  sign-quote  --key <keystore> [quote flags]      sign a quote and print the submit request")
	fmt.Fprintln(w, "  token       --subject <address> [--ttl 1h]      issue an API bearer token")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Keystore passphrases are read from %s, the token secret from %s.\n", keystorePassEnv, jwtSecretEnv)
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	switch args[0] {
	case "keygen":
		return keygen(args[1:], out)
	case "sign-quote":
		return signQuote(args[1:], out)
	case "token":
		return issueToken(args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", "", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("--out is required")
	}
	if _, err := os.Stat(*path); err == nil {
		return fmt.Errorf("%s already exists", *path)
	}
	pass, err := passphrase.NewSource(keystorePassEnv, "keystore passphrase").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*path, key, pass); err != nil {
		return err
	}
	pub := key.PubKey()
	fmt.Fprintf(out, "Address:    %s\n", pub.String())
	fmt.Fprintf(out, "Public key: %s\n", pub.Hex())
	fmt.Fprintf(out, "Keystore:   %s\n", *path)
	return nil
}

func signQuote(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign-quote", flag.ContinueOnError)
	keyPath := fs.String("key", "", "keystore holding the market maker signing key")
	mm := fs.String("mm", "", "market maker owner address (defaults to the signing key)")
	asset := fs.String("asset", "", "underlying asset mint")
	quoteMint := fs.String("quote-mint", "", "quote currency mint")
	strategy := fs.String("strategy", "COVERED_CALL", "COVERED_CALL or CASH_SECURED_PUT")
	strike := fs.Uint64("strike", 0, "strike price in quote units")
	premium := fs.Uint64("premium", 0, "premium per contract")
	size := fs.Uint64("size", 0, "contract size in base units")
	expiry := fs.String("expiry", "24h", "quote expiry as a unix timestamp or a duration from now")
	nonce := fs.Uint64("nonce", 0, "quote nonce")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*keyPath) == "" {
		return errors.New("--key is required")
	}
	assetMint, err := types.ParseAddress(*asset)
	if err != nil {
		return fmt.Errorf("--asset: %w", err)
	}
	quoteAddr, err := types.ParseAddress(*quoteMint)
	if err != nil {
		return fmt.Errorf("--quote-mint: %w", err)
	}
	strat, err := rfq.ParseStrategy(*strategy)
	if err != nil {
		return err
	}
	expiresAt, err := parseExpiry(*expiry, time.Now())
	if err != nil {
		return fmt.Errorf("--expiry: %w", err)
	}

	pass, err := passphrase.NewSource(keystorePassEnv, "keystore passphrase").Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*keyPath, pass)
	if err != nil {
		return err
	}
	owner := key.PubKey()
	if strings.TrimSpace(*mm) != "" {
		if owner, err = types.ParseAddress(*mm); err != nil {
			return fmt.Errorf("--mm: %w", err)
		}
	}

	req := buildSubmitRequest(key, owner, rfq.Quote{
		AssetMint:          assetMint,
		QuoteMint:          quoteAddr,
		Strategy:           strat,
		StrikePrice:        *strike,
		PremiumPerContract: *premium,
		ContractSize:       *size,
		QuoteExpiry:        expiresAt,
		Nonce:              *nonce,
	})
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(req)
}

// buildSubmitRequest signs q and places the companion signature instruction
// at index zero of the batch.
func buildSubmitRequest(key *crypto.PrivateKey, mm types.Address, q rfq.Quote) rpc.SubmitIntentRequest {
	msg := q.Message()
	sig := key.Sign(msg)
	return rpc.SubmitIntentRequest{
		MM:        mm,
		Quote:     rpc.QuoteBodyFrom(q),
		Signature: hex.EncodeToString(sig[:]),
		Batch:     batch.Batch{crypto.NewEd25519Instruction(key, msg)},
	}
}

func parseExpiry(raw string, now time.Time) (int64, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, errors.New("duration must be positive")
		}
		return now.Add(d).Unix(), nil
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return 0, fmt.Errorf("invalid expiry %q", raw)
	}
	return ts, nil
}

func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "address the token authenticates")
	issuer := fs.String("issuer", "solation", "token issuer")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := types.ParseAddress(*subject)
	if err != nil {
		return fmt.Errorf("--subject: %w", err)
	}
	secret, err := passphrase.NewSource(jwtSecretEnv, "JWT secret").Get()
	if err != nil {
		return err
	}
	token, err := rpc.IssueToken(secret, *issuer, addr, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
