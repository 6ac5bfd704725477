// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

// Wallet holds a secp256k1 signing key and its derived address.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	Address    common.Address
}

// New creates a wallet from a hex-encoded private key (with or without a
// 0x prefix).
func New(privateKeyHex string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{
		privateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Generate creates a wallet with a fresh random key.
func Generate() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Wallet{
		privateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// SignDigest signs a 32-byte keccak digest and returns the 65-byte
// recoverable signature.
func (w *Wallet) SignDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := crypto.Sign(digest, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	return sig, nil
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// String returns the wallet's address.
func (w *Wallet) String() string {
	return w.Address.Hex()
}

// walletFile is the on-disk wallets YAML layout.
type walletFile struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets reads named wallets from a YAML file. Entries with a missing
// name or an unparsable key are skipped; an empty result is an error.
func LoadWallets(path string) (map[string]*Wallet, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallets file: %w", err)
	}

	var file walletFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wallets YAML: %w", err)
	}
	if len(file.Wallets) == 0 {
		return nil, fmt.Errorf("no wallets found in %s", cleanPath)
	}

	wallets := make(map[string]*Wallet)
	for _, entry := range file.Wallets {
		if entry.Name == "" || entry.PrivateKey == "" {
			continue
		}
		w, err := New(entry.PrivateKey)
		if err != nil {
			continue
		}
		wallets[entry.Name] = w
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no valid wallets loaded from %s", cleanPath)
	}
	return wallets, nil
}
