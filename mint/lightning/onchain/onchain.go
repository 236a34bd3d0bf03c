// Package onchain abstracts the mint's on-chain Bitcoin backend behind
// the same kind of capability interface mint/lightning uses for
// Lightning, so §6.2's "*/btconchain/*" routes can be implemented
// against either a real bitcoind or an in-memory fake.
package onchain

import "context"

// Backend is the capability set the mint core needs for on-chain mint
// and melt quotes.
type Backend interface {
	NewAddress(ctx context.Context) (string, error)
	SendCoins(ctx context.Context, address string, amount uint64, satPerVbyte float64) (txid string, err error)
	EstimateFee(ctx context.Context, address string, amount uint64) (feeSat uint64, satPerVbyte float64, err error)
	IsPaid(ctx context.Context, address string, amount uint64, minConfirmations uint) (bool, string, error)
}
