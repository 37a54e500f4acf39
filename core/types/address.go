package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix is the human-readable part used when rendering addresses.
const AddressPrefix = "sol"

// AddressLength is the size of an account, mint or key identifier. Signing keys
// are ed25519 public keys and share the same representation.
const AddressLength = 32

// Address identifies an account, a mint or a public signing key.
type Address [AddressLength]byte

// BytesToAddress copies b into an Address. It fails when b has the wrong size.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

// Hex renders the raw bytes as lowercase hex without a prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return a.Hex()
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		return a.Hex()
	}
	return encoded
}

// ParseAddress accepts either the bech32 form ("sol1...") or 64 hex characters
// with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if strings.HasPrefix(strings.ToLower(trimmed), AddressPrefix+"1") {
		prefix, decoded, err := bech32.Decode(trimmed)
		if err != nil {
			return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
		}
		if prefix != AddressPrefix {
			return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
		}
		conv, err := bech32.ConvertBits(decoded, 5, 8, false)
		if err != nil {
			return Address{}, fmt.Errorf("error converting bits: %w", err)
		}
		return BytesToAddress(conv)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X"))
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return BytesToAddress(raw)
}

// MarshalText renders the bech32 form so addresses read naturally in JSON and YAML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
