// Package nutonchain contains the on-chain analogue of the bolt11
// mint-quote/melt-quote wire types: requests and responses for minting
// against a deposit address and melting to a withdrawal address.
package nutonchain

import "github.com/cashunuts/mint/cashu"

type PostMintQuoteBtcOnchainRequest struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

type PostMintQuoteBtcOnchainResponse struct {
	Quote           string `json:"quote"`
	Address         string `json:"address"`
	Paid            bool   `json:"paid"`
	Expiry          int64  `json:"expiry"`
	MinConfirmations uint   `json:"min_confirmations"`
}

type PostMintBtcOnchainRequest struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostMintBtcOnchainResponse struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}

type PostMeltQuoteBtcOnchainRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Unit    string `json:"unit"`
}

type PostMeltQuoteBtcOnchainResponse struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	Paid       bool   `json:"paid"`
	Expiry     int64  `json:"expiry"`
}

type PostMeltBtcOnchainRequest struct {
	Quote   string                `json:"quote"`
	Inputs  cashu.Proofs          `json:"inputs"`
	Outputs cashu.BlindedMessages `json:"outputs,omitempty"`
}

type PostMeltBtcOnchainResponse struct {
	Paid   bool                    `json:"paid"`
	Txid   string                  `json:"txid"`
	Change cashu.BlindedSignatures `json:"change,omitempty"`
}
