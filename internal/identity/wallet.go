// Package identity manages the signing wallet: an encrypted keystore
// file on disk, with the password held in the platform keyring or a
// password file.
package identity

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/custodex/custodex/internal/logging"
)

// Wallet wraps one keystore account used to sign payment transactions.
type Wallet struct {
	keystore   *keystore.KeyStore
	dir        string
	address    common.Address
	privateKey *ecdsa.PrivateKey
}

// Load opens an existing wallet from the keystore directory. A nil
// wallet with nil error means no key exists yet; the client then runs
// read-only.
func Load(keystoreDir string) (*Wallet, error) {
	ks, err := openKeystore(keystoreDir)
	if err != nil {
		return nil, err
	}

	accounts := ks.Accounts()
	if len(accounts) == 0 {
		return nil, nil
	}

	return &Wallet{
		keystore: ks,
		dir:      keystoreDir,
		address:  accounts[0].Address,
	}, nil
}

// Create generates a new key encrypted with password. It refuses to
// overwrite an existing wallet.
func Create(keystoreDir, password string) (*Wallet, error) {
	ks, err := openKeystore(keystoreDir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("a wallet already exists in %s", keystoreDir)
	}

	account, err := ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	logging.Info("wallet created", logging.Address(account.Address.Hex()))

	return &Wallet{
		keystore: ks,
		dir:      keystoreDir,
		address:  account.Address,
	}, nil
}

// Import stores an existing private key, hex-encoded with or without a
// 0x prefix, encrypted with password.
func Import(keystoreDir, privKeyHex, password string) (*Wallet, error) {
	ks, err := openKeystore(keystoreDir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("a wallet already exists in %s", keystoreDir)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	account, err := ks.ImportECDSA(key, password)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}
	logging.Info("wallet imported", logging.Address(account.Address.Hex()))

	return &Wallet{
		keystore: ks,
		dir:      keystoreDir,
		address:  account.Address,
	}, nil
}

func openKeystore(dir string) (*keystore.KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), nil
}

// Address returns the wallet's address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// KeystoreDir returns the keystore directory path.
func (w *Wallet) KeystoreDir() string {
	return w.dir
}

// PrivateKey decrypts and returns the signing key. The decrypted key
// is cached until ClearCachedKey.
func (w *Wallet) PrivateKey(password string) (*ecdsa.PrivateKey, error) {
	if w.privateKey != nil {
		return w.privateKey, nil
	}

	accounts := w.keystore.Accounts()
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts in keystore")
	}

	keyJSON, err := os.ReadFile(accounts[0].URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	w.privateKey = key.PrivateKey
	return key.PrivateKey, nil
}

// ClearCachedKey zeros and drops the cached private key. The key is
// re-derived from the keystore on next use.
func (w *Wallet) ClearCachedKey() {
	if w.privateKey != nil {
		w.privateKey.D.SetUint64(0)
		w.privateKey = nil
	}
}

// ResolvePassword finds the wallet password: the password file when
// configured, otherwise the platform keyring. An empty string with nil
// error means neither source has it and the caller should prompt.
func ResolvePassword(passwordFile string) (string, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return RetrieveWalletPassword()
}
