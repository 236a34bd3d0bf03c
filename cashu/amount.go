package cashu

import (
	"crypto/rand"
	"math/big"
	"math/bits"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// AmountSplit decomposes an amount into the multiset of powers of two equal
// to its set bits, ascending, e.g. 13 -> [1, 4, 8].
func AmountSplit(amount uint64) []uint64 {
	split := make([]uint64, 0)
	for pos := 0; amount > 0; pos++ {
		if amount&1 == 1 {
			split = append(split, uint64(1)<<uint(pos))
		}
		amount >>= 1
	}
	return split
}

// MaxSplitLen returns the number of elements AmountSplit(x) can have for
// any x in [0, amount]: the number of bits needed to represent amount.
// Callers that must provision blinded outputs before they know the exact
// value being split (a melt's fee-reserve change, sized against the
// reserve before the backend's actual fee is known) use this bound so
// AmountSplit of whatever the real value turns out to be always fits.
func MaxSplitLen(amount uint64) int {
	return bits.Len64(amount)
}

// GenerateRandomSecret returns a fresh 24-character alphanumeric secret,
// the legacy (non-deterministic) strategy for a Proof's Secret field.
func GenerateRandomSecret() (string, error) {
	out := make([]byte, 24)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[n.Int64()]
	}
	return string(out), nil
}

// CreateSecrets returns one freshly generated random secret per entry in
// split. Deterministic wallets replace this with seed-derived secrets;
// see wallet.DeriveSecret.
func CreateSecrets(split []uint64) ([]string, error) {
	secrets := make([]string, len(split))
	for i := range split {
		secret, err := GenerateRandomSecret()
		if err != nil {
			return nil, err
		}
		secrets[i] = secret
	}
	return secrets, nil
}

// CheckDuplicateProofs reports whether proofs contains the same
// (amount, id, secret, C) tuple more than once.
func CheckDuplicateProofs(proofs Proofs) bool {
	seen := make(map[Proof]bool, len(proofs))
	for _, p := range proofs {
		if seen[p] {
			return true
		}
		seen[p] = true
	}
	return false
}

// CheckDuplicateBlindedMessages reports whether messages contains the same
// B_ value more than once.
func CheckDuplicateBlindedMessages(messages BlindedMessages) bool {
	seen := make(map[string]bool, len(messages))
	for _, m := range messages {
		if seen[m.B_] {
			return true
		}
		seen[m.B_] = true
	}
	return false
}
