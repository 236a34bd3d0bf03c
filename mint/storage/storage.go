// Package storage defines the mint's persistence contract: keysets, the
// used-proof ledger, pending (locked-in-flight) proofs, and the
// bolt11/on-chain mint- and melt-quote tables.
package storage

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/cashunuts/mint/cashu"
)

// QuoteState mirrors the pending -> paid -> consumed lifecycle every
// quote goes through.
type QuoteState int

const (
	QuotePending QuoteState = iota
	QuotePaid
	QuoteConsumed
)

func (s QuoteState) String() string {
	switch s {
	case QuotePending:
		return "PENDING"
	case QuotePaid:
		return "PAID"
	case QuoteConsumed:
		return "CONSUMED"
	default:
		return "UNKNOWN"
	}
}

func StringToQuoteState(s string) QuoteState {
	switch s {
	case "PAID":
		return QuotePaid
	case "CONSUMED":
		return QuoteConsumed
	default:
		return QuotePending
	}
}

// MintDB is the mint's persistence interface. Implementations must make
// mark-spent and persist-quote-state atomic within a single transaction
// for the swap and melt paths.
type MintDB interface {
	SaveSeed(seed []byte) error
	GetSeed() ([]byte, error)

	SaveKeyset(DBKeyset) error
	GetKeysets() ([]DBKeyset, error)
	UpdateKeysetActive(keysetId string, active bool) error

	// Swap marks the input proofs as used and persists the blind
	// signatures for the outputs atomically.
	Swap(inputs cashu.Proofs, B_s []string, signatures cashu.BlindedSignatures) error

	GetProofsUsed(Ys []string) ([]DBProof, error)
	AddPendingProofs(proofs cashu.Proofs, quoteId string) error
	GetPendingProofsByQuote(quoteId string) ([]DBProof, error)
	// GetPendingProofs returns any of Ys currently held pending by another
	// in-flight melt, so a concurrent swap or melt can reject them instead
	// of racing the payment that already has them locked.
	GetPendingProofs(Ys []string) ([]DBProof, error)
	RemovePendingProofs(Ys []string) error

	SaveMintQuote(MintQuote) error
	GetMintQuote(id string) (MintQuote, error)
	GetMintQuoteByPaymentHash(paymentHash string) (MintQuote, error)
	GetMintQuoteByAddress(address string) (MintQuote, error)
	UpdateMintQuoteState(quoteId string, state QuoteState) error
	// IssueMintQuote atomically transitions the quote to consumed and
	// persists the signatures issued for it; returns cashu.MintQuoteAlreadyIssuedErr
	// if a concurrent call already consumed the same quote.
	IssueMintQuote(quoteId string, B_s []string, signatures cashu.BlindedSignatures) error

	SaveMeltQuote(MeltQuote) error
	GetMeltQuote(id string) (MeltQuote, error)
	GetMeltQuoteByPaymentRequest(paymentRequest string) (*MeltQuote, error)
	GetMeltQuoteByAddress(address string) (*MeltQuote, error)
	UpdateMeltQuoteState(quoteId string, state QuoteState) error
	// Melt atomically marks input proofs used, records the payout
	// preimage/txid and transitions the quote to consumed, and persists any
	// change signatures, all within one transaction.
	Melt(inputs cashu.Proofs, quoteId string, preimageOrTxid string, B_s []string, change cashu.BlindedSignatures) error

	SaveBlindSignatures(B_s []string, blindSignatures cashu.BlindedSignatures) error
	GetBlindSignature(B_ string) (cashu.BlindedSignature, error)
	GetBlindSignatures(B_s []string) (cashu.BlindedSignatures, error)

	GetIssuedEcash() (map[string]uint64, error)
	GetRedeemedEcash() (map[string]uint64, error)

	Close() error
}

// DBKeyset is a persisted mint signing keyset.
type DBKeyset struct {
	Id          string
	Unit        string
	Active      bool
	Seed        string
	Path        string
	InputFeePpk uint
}

// DBProof is a persisted spent or pending proof.
type DBProof struct {
	Amount      uint64
	Id          string
	Secret      string
	Y           string
	C           string
	Witness     string
	MeltQuoteId string
}

// MintQuote is a negotiated intent to mint, identified by a UUID.
type MintQuote struct {
	Id             string
	Amount         uint64
	Unit           string
	PaymentRequest string
	PaymentHash    string
	// Address and MinConfirmations are set only for the on-chain method.
	Address          string
	MinConfirmations uint
	ObservedTxid     string
	State            QuoteState
	Expiry           int64
	Pubkey           *secp256k1.PublicKey
}

// MeltQuote is a negotiated intent to melt, identified by a UUID.
type MeltQuote struct {
	Id             string
	Unit           string
	PaymentRequest string
	PaymentHash    string
	Address        string
	Amount         uint64
	FeeReserve     uint64
	State          QuoteState
	Expiry         int64
	Preimage       string
	Txid           string
}
