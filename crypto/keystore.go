package crypto

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"

	"solation/core/types"
)

const keystoreVersion = 1

type keystoreFile struct {
	Version int                 `json:"version"`
	Address string              `json:"address"`
	Crypto  keystore.CryptoJSON `json:"crypto"`
}

// SaveToKeystore encrypts the key seed with the passphrase using the v3 scrypt
// scheme and writes it to path. The parent directory is created with 0700
// permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	cj, err := keystore.EncryptDataV3(key.Seed(), []byte(passphrase), keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(keystoreFile{
		Version: keystoreVersion,
		Address: key.PubKey().String(),
		Crypto:  cj,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, encoded, 0o600)
}

// LoadFromKeystore decrypts a keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file keystoreFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	seed, err := keystore.DecryptDataV3(file.Crypto, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if file.Address != "" {
		addr, err := types.ParseAddress(file.Address)
		if err != nil {
			return nil, err
		}
		if addr != key.PubKey() {
			return nil, errors.New("crypto: keystore address mismatch")
		}
	}
	return key, nil
}
