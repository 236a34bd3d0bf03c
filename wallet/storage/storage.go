// Package storage defines the wallet's persistence interface: proofs,
// pending proofs held against an in-flight melt, known keysets and their
// NUT-13 derivation counters, quotes, and the wallet's own seed.
package storage

import (
	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
)

// QuoteState mirrors the mint's own pending -> paid -> consumed quote
// lifecycle, tracked wallet-side so a restart can resume an in-flight
// mint or melt without re-querying the mint first.
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
		return "unknown"
	}
}

// DBProof is a proof as stored, indexed by its Y = hash_to_curve(secret)
// point rather than its raw secret, matching how the mint itself indexes
// spent and pending proofs.
type DBProof struct {
	Y      string `json:"y"`
	Amount uint64 `json:"amount"`
	Id     string `json:"id"`
	Secret string `json:"secret"`
	C      string `json:"C"`
	// MeltQuoteId is set when a proof is held pending against an
	// in-flight melt rather than sitting unspent in the wallet.
	MeltQuoteId string `json:"melt_quote_id,omitempty"`
}

// MintQuote is the wallet's local record of a quote requested from a
// mint: invoice, amount, and state as last observed.
type MintQuote struct {
	QuoteId        string
	Mint           string
	Method         string
	State          QuoteState
	Unit           string
	PaymentRequest string
	Amount         uint64
	CreatedAt      int64
	Expiry         int64
}

// MeltQuote is the wallet's local record of a melt quote.
type MeltQuote struct {
	QuoteId        string
	Mint           string
	Method         string
	State          QuoteState
	Unit           string
	PaymentRequest string
	Amount         uint64
	FeeReserve     uint64
	Preimage       string
	CreatedAt      int64
	Expiry         int64
}

// WalletDB is the wallet's storage interface, implemented by the bolt
// package.
type WalletDB interface {
	SaveMnemonicSeed(mnemonic string, seed []byte) error
	GetSeed() []byte
	GetMnemonic() string

	SaveProofs(cashu.Proofs) error
	GetProofs() cashu.Proofs
	GetProofsByKeysetId(id string) cashu.Proofs
	DeleteProof(secret string) error

	AddPendingProofs(proofs cashu.Proofs, meltQuoteId string) error
	GetPendingProofs() []DBProof
	GetPendingProofsByQuoteId(quoteId string) []DBProof
	DeletePendingProofs(Ys []string) error

	SaveKeyset(*crypto.WalletKeyset) error
	GetKeysets() map[string][]crypto.WalletKeyset
	GetKeyset(id string) *crypto.WalletKeyset
	IncrementKeysetCounter(id string, num uint32) error
	GetKeysetCounter(id string) uint32

	SaveMintQuote(MintQuote) error
	GetMintQuotes() []MintQuote
	GetMintQuoteById(id string) *MintQuote

	SaveMeltQuote(MeltQuote) error
	GetMeltQuotes() []MeltQuote
	GetMeltQuoteById(id string) *MeltQuote

	Close() error
}
