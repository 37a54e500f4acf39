package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"solation/core/types"
)

// PrivateKey is an ed25519 signing key used by market makers to sign quotes.
type PrivateKey struct {
	key ed25519.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: priv}, nil
}

// PrivateKeyFromSeed derives the key from a 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes", ed25519.SeedSize)
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte { return k.key.Seed() }

// PubKey returns the public half as an address.
func (k *PrivateKey) PubKey() types.Address {
	var addr types.Address
	copy(addr[:], k.key.Public().(ed25519.PublicKey))
	return addr
}

// Sign signs msg and returns the 64-byte signature.
func (k *PrivateKey) Sign(msg []byte) [ed25519.SignatureSize]byte {
	var sig [ed25519.SignatureSize]byte
	copy(sig[:], ed25519.Sign(k.key, msg))
	return sig
}

// Verify reports whether sig is a valid signature of msg by pub.
func Verify(pub types.Address, msg []byte, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}

// SaveKey writes the hex-encoded seed to path with owner-only permissions.
func SaveKey(path string, key *PrivateKey) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty key path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(key.Seed())+"\n"), 0o600)
}

// LoadKey reads a key written by SaveKey.
func LoadKey(path string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty key path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key file: %w", err)
	}
	return PrivateKeyFromSeed(seed)
}
