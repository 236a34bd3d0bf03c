// Package cashu contains the core data types, wire codec and amount
// arithmetic of the ecash protocol: proofs, blinded messages and
// signatures, and the token container that bundles proofs for transfer.
package cashu

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Unit identifies the currency a mint issues ecash in.
type Unit int

const (
	Sat Unit = iota
)

func (u Unit) String() string {
	switch u {
	case Sat:
		return "sat"
	default:
		return "unknown"
	}
}

// Bolt11Method is the payment method string used by the mint/melt
// bolt11 endpoints.
const Bolt11Method = "bolt11"

// BlindedMessage is the wallet's output commitment submitted for signing.
// See NUT-00.
type BlindedMessage struct {
	Amount uint64 `json:"amount"`
	B_     string `json:"B_"`
	Id     string `json:"id"`
}

// NewBlindedMessage builds a BlindedMessage from a public key point.
func NewBlindedMessage(id string, amount uint64, B_ *secp256k1.PublicKey) BlindedMessage {
	return BlindedMessage{Amount: amount, B_: hex.EncodeToString(B_.SerializeCompressed()), Id: id}
}

// BlindedMessages is a slice of BlindedMessage with aggregate helpers.
type BlindedMessages []BlindedMessage

// Amount returns the sum of all message amounts.
func (bm BlindedMessages) Amount() uint64 {
	var total uint64
	for _, m := range bm {
		total += m.Amount
	}
	return total
}

// BlindedSignature is the mint's signature over a BlindedMessage, not yet
// unblinded by the wallet. See NUT-00.
type BlindedSignature struct {
	Amount uint64 `json:"amount"`
	C_     string `json:"C_"`
	Id     string `json:"id"`
}

// BlindedSignatures is a slice of BlindedSignature with aggregate helpers.
type BlindedSignatures []BlindedSignature

// Amount returns the sum of all signature amounts.
func (bs BlindedSignatures) Amount() uint64 {
	var total uint64
	for _, s := range bs {
		total += s.Amount
	}
	return total
}

// Proof is one unblinded signature: a bearer note of value Amount under
// keyset Id, verifiable as C == sk_Amount * hash_to_curve(Secret).
type Proof struct {
	Amount uint64 `json:"amount"`
	Id     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
	// Script is reserved by the v3 wire format for a future scripting
	// extension; this implementation never sets it.
	Script *string `json:"script,omitempty"`
}

// Proofs is a slice of Proof with aggregate helpers.
type Proofs []Proof

// Amount returns the sum of all proof amounts.
func (proofs Proofs) Amount() uint64 {
	var total uint64
	for _, p := range proofs {
		total += p.Amount
	}
	return total
}
