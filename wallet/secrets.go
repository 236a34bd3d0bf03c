package wallet

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
)

// derivationType selects which leaf of a counter's BIP-32 path to derive:
// 0 for the proof's secret, 1 for its blinding factor.
type derivationType uint32

const (
	secretDerivation   derivationType = 0
	blindingDerivation derivationType = 1
)

// SeedFromMnemonic validates a BIP-39 mnemonic and returns its BIP-32 seed.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("wallet: invalid mnemonic")
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// KeysetCounterSpace maps a keyset id onto the 31-bit integer k used as
// the hardened child index m/129372'/0'/k' (NUT-13). Legacy keyset ids
// are 16 hex digits, so the first 8 raw bytes of the hex decoding are
// taken directly, matching other NUT-13 implementations byte for byte.
// This mint's own keyset ids (§ keyset derivation) are base64, not hex;
// for those, the first 8 bytes of SHA256(id) are used instead so the
// mapping stays a deterministic function of the id string either way.
func KeysetCounterSpace(keysetId string) uint32 {
	var first8 [8]byte
	if raw, err := hex.DecodeString(keysetId); err == nil && len(raw) >= 8 {
		copy(first8[:], raw[:8])
	} else {
		h := sha256.Sum256([]byte(keysetId))
		copy(first8[:], h[:8])
	}
	k := binary.BigEndian.Uint64(first8[:])
	return uint32(k % (1<<31 - 1))
}

// deriveKeysetPath walks m/129372'/0'/k' from the wallet's master seed.
func deriveKeysetPath(seed []byte, k uint32) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + 129372)
	if err != nil {
		return nil, err
	}
	coinType, err := purpose.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}
	return coinType.Derive(hdkeychain.HardenedKeyStart + k)
}

// DeriveSecret derives the hex-encoded secret for counter n under keyset
// counter-space k: m/129372'/0'/k'/n'/0.
func DeriveSecret(seed []byte, k, counter uint32) (string, error) {
	keysetPath, err := deriveKeysetPath(seed, k)
	if err != nil {
		return "", err
	}
	counterPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + counter)
	if err != nil {
		return "", err
	}
	leaf, err := counterPath.Derive(uint32(secretDerivation))
	if err != nil {
		return "", err
	}
	secretKey, err := leaf.ECPrivKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(secretKey.Serialize()), nil
}

// DeriveBlindingFactor derives the blinding scalar r for counter n under
// keyset counter-space k: m/129372'/0'/k'/n'/1.
func DeriveBlindingFactor(seed []byte, k, counter uint32) (*secp256k1.PrivateKey, error) {
	keysetPath, err := deriveKeysetPath(seed, k)
	if err != nil {
		return nil, err
	}
	counterPath, err := keysetPath.Derive(hdkeychain.HardenedKeyStart + counter)
	if err != nil {
		return nil, err
	}
	leaf, err := counterPath.Derive(uint32(blindingDerivation))
	if err != nil {
		return nil, err
	}
	return leaf.ECPrivKey()
}
