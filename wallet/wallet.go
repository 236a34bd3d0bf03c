// Package wallet implements the wallet-side state machine: denomination
// splitting, deterministic secret/blinding-factor derivation from a
// BIP-39 seed, proof selection, and the mint/send/receive/pay
// operations that drive an HTTP client against a single mint.
package wallet

import (
	"fmt"
	"net/url"

	"github.com/tyler-smith/go-bip39"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
	"github.com/cashunuts/mint/wallet/storage"
)

// Config configures a wallet instance: where its local state lives and
// which mint it currently talks to.
type Config struct {
	WalletPath     string
	CurrentMintURL string
}

// Wallet holds a client's local proof store, its deterministic seed,
// and its view of the configured mint's keysets.
type Wallet struct {
	db      storage.WalletDB
	MintURL string

	seed     []byte
	mnemonic string

	ActiveKeysets   map[string]crypto.WalletKeyset
	InactiveKeysets map[string]crypto.WalletKeyset
}

// InitStorage opens the wallet's bbolt-backed store at path.
func InitStorage(path string) (storage.WalletDB, error) {
	return storage.InitBolt(path)
}

// LoadWallet opens (or initializes) the wallet's database, generating a
// fresh BIP-39 mnemonic on first run, and refreshes its view of the
// configured mint's keysets.
func LoadWallet(config Config) (*Wallet, error) {
	db, err := InitStorage(config.WalletPath)
	if err != nil {
		return nil, fmt.Errorf("wallet: opening storage: %w", err)
	}

	mintURL, err := url.Parse(config.CurrentMintURL)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid mint url: %w", err)
	}

	w := &Wallet{db: db, MintURL: mintURL.String()}

	mnemonic := db.GetMnemonic()
	if mnemonic == "" {
		mnemonic, err = newMnemonic()
		if err != nil {
			return nil, fmt.Errorf("wallet: generating mnemonic: %w", err)
		}
		seed, err := SeedFromMnemonic(mnemonic)
		if err != nil {
			return nil, err
		}
		if err := db.SaveMnemonicSeed(mnemonic, seed); err != nil {
			return nil, fmt.Errorf("wallet: persisting seed: %w", err)
		}
	}
	w.mnemonic = db.GetMnemonic()
	w.seed = db.GetSeed()

	if err := w.refreshKeysets(); err != nil {
		return nil, fmt.Errorf("wallet: loading mint keysets: %w", err)
	}

	return w, nil
}

func newMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Mnemonic returns the wallet's recovery phrase.
func (w *Wallet) Mnemonic() string {
	return w.mnemonic
}

// refreshKeysets fetches the configured mint's active and inactive
// keysets and persists any the wallet has not seen before, starting
// each newly-seen keyset's NUT-13 derivation counter at zero.
func (w *Wallet) refreshKeysets() error {
	active, err := GetActiveKeysets(w.MintURL)
	if err != nil {
		return err
	}
	w.ActiveKeysets = active

	for id, ks := range active {
		if existing := w.db.GetKeyset(id); existing == nil {
			ksCopy := ks
			if err := w.db.SaveKeyset(&ksCopy); err != nil {
				return err
			}
		}
	}

	infos, err := GetKeysetsInfo(w.MintURL)
	if err != nil {
		return err
	}
	inactive := make(map[string]crypto.WalletKeyset)
	for _, info := range infos {
		if info.Active {
			continue
		}
		if existing := w.db.GetKeyset(info.Id); existing != nil {
			inactive[info.Id] = *existing
			continue
		}
		ks := crypto.WalletKeyset{Id: info.Id, MintURL: w.MintURL, Unit: info.Unit, Active: false, InputFeePpk: info.InputFeePpk}
		if err := w.db.SaveKeyset(&ks); err != nil {
			return err
		}
		inactive[info.Id] = ks
	}
	w.InactiveKeysets = inactive

	return nil
}

// GetActiveSatKeyset returns the active sat-denominated keyset, which
// is the only unit this wallet mints, sends, or melts in.
func (w *Wallet) GetActiveSatKeyset() (crypto.WalletKeyset, error) {
	for _, ks := range w.ActiveKeysets {
		if ks.Unit == cashu.Sat.String() {
			return ks, nil
		}
	}
	return crypto.WalletKeyset{}, fmt.Errorf("wallet: no active sat keyset advertised by %s", w.MintURL)
}

// GetBalance returns the sum of every proof currently held.
func (w *Wallet) GetBalance() uint64 {
	return w.db.GetProofs().Amount()
}

// Close releases the wallet's underlying storage.
func (w *Wallet) Close() error {
	return w.db.Close()
}
