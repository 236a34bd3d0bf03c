package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MaxOrder is the number of amount denominations a keyset derives: one
// keypair per power of two from 2^0 up to 2^(MaxOrder-1).
const MaxOrder = 64

// KeyPair is one amount's secp256k1 keypair within a keyset.
type KeyPair struct {
	PrivateKey *secp256k1.PrivateKey
	PublicKey  *secp256k1.PublicKey
}

// MintKeyset is the mint-side {amount -> keypair} table derived from a
// single (seed, derivation path) pair, plus its content-addressed id.
type MintKeyset struct {
	Id          string
	Unit        string
	Active      bool
	Seed        string
	Path        string
	Keys        map[uint64]KeyPair
	InputFeePpk uint
	// MintPubkey advertises the mint's identity; it is SHA256(seed)*G and
	// is never one of the amount keys.
	MintPubkey *secp256k1.PublicKey
}

// DeriveKeys computes the amount -> keypair table for (seed, path) per:
//
//	h_i  = SHA256(seed || path || ascii(i))
//	sk_i = h_i interpreted as a scalar
//	pk_i = sk_i * G
func DeriveKeys(seed, path string) map[uint64]KeyPair {
	keys := make(map[uint64]KeyPair, MaxOrder)

	prefix := seed + path
	for i := 0; i < MaxOrder; i++ {
		amount := uint64(1) << uint(i)

		h := sha256.Sum256([]byte(prefix + strconv.Itoa(i)))
		sk := secp256k1.PrivKeyFromBytes(h[:])
		keys[amount] = KeyPair{PrivateKey: sk, PublicKey: sk.PubKey()}
	}

	return keys
}

// MintPubkeyFromSeed derives the mint's advertised identity key, distinct
// from every amount key: SHA256(seed) * G.
func MintPubkeyFromSeed(seed string) *secp256k1.PublicKey {
	h := sha256.Sum256([]byte(seed))
	sk := secp256k1.PrivKeyFromBytes(h[:])
	return sk.PubKey()
}

// GenerateKeyset derives a full MintKeyset from (seed, path) and computes
// its keyset id.
func GenerateKeyset(seed, path, unit string, inputFeePpk uint) *MintKeyset {
	keys := DeriveKeys(seed, path)

	pks := make(PublicKeys, len(keys))
	for amount, kp := range keys {
		pks[amount] = kp.PublicKey
	}

	return &MintKeyset{
		Id:          DeriveKeysetId(pks),
		Unit:        unit,
		Active:      true,
		Seed:        seed,
		Path:        path,
		Keys:        keys,
		InputFeePpk: inputFeePpk,
		MintPubkey:  MintPubkeyFromSeed(seed),
	}
}

// PublicKeys maps an amount to its compressed public key.
type PublicKeys map[uint64]*secp256k1.PublicKey

// DeriveKeysetId returns the content-addressed keyset id:
//
//  1. sort public keys by amount ascending
//  2. concatenate the lowercase hex strings of their compressed-point encodings
//  3. SHA256 the concatenation
//  4. base64 (standard alphabet) the hash and take the first 12 characters
//
// Two keysets derived from identical (seed, path) always yield the same id;
// serving a different key map under an existing id is a protocol violation.
func DeriveKeysetId(keyset PublicKeys) string {
	amounts := make([]uint64, 0, len(keyset))
	for amount := range keyset {
		amounts = append(amounts, amount)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	concat := make([]byte, 0, len(amounts)*66)
	for _, amount := range amounts {
		concat = append(concat, hex.EncodeToString(keyset[amount].SerializeCompressed())...)
	}

	hash := sha256.Sum256(concat)
	encoded := base64.StdEncoding.EncodeToString(hash[:])
	if len(encoded) > 12 {
		encoded = encoded[:12]
	}
	return encoded
}

// PublicKeys returns the keyset's public keys as a map of amount to point.
func (ks *MintKeyset) PublicKeys() PublicKeys {
	pks := make(PublicKeys, len(ks.Keys))
	for amount, kp := range ks.Keys {
		pks[amount] = kp.PublicKey
	}
	return pks
}

// MarshalJSON renders the amount -> hex-compressed-pubkey map sorted by
// amount ascending, matching the wire shape of GET /v1/keys.
func (pks PublicKeys) MarshalJSON() ([]byte, error) {
	amounts := make([]uint64, 0, len(pks))
	for amount := range pks {
		amounts = append(amounts, amount)
	}
	slices.Sort(amounts)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, amount := range amounts {
		if i != 0 {
			buf.WriteByte(',')
		}
		key := hex.EncodeToString(pks[amount].SerializeCompressed())
		fmt.Fprintf(&buf, "%q:%q", strconv.FormatUint(amount, 10), key)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses the amount -> hex-compressed-pubkey map produced by
// MarshalJSON.
func (pks *PublicKeys) UnmarshalJSON(data []byte) error {
	raw := make(map[string]string)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	keys := make(PublicKeys, len(raw))
	for amountStr, hexKey := range raw {
		amount, err := strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return fmt.Errorf("invalid public key %q: %w", hexKey, err)
		}
		pubkey, err := secp256k1.ParsePubKey(keyBytes)
		if err != nil {
			return fmt.Errorf("invalid public key %q: %w", hexKey, err)
		}
		keys[amount] = pubkey
	}
	*pks = keys
	return nil
}

// WalletKeyset is the wallet-side view of a mint's keyset: public keys
// only, plus the NUT-13 derivation counter.
type WalletKeyset struct {
	Id          string
	MintURL     string
	Unit        string
	Active      bool
	PublicKeys  PublicKeys
	Counter     uint32
	InputFeePpk uint
}
