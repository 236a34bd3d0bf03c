package mint

import (
	"context"

	"github.com/google/uuid"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/mint/storage"
)

// RequestMintQuoteOnchain hands out a fresh receive address and persists
// a pending mint quote against it.
func (m *Mint) RequestMintQuoteOnchain(ctx context.Context, amount uint64) (storage.MintQuote, error) {
	if m.onchainBackend == nil {
		return storage.MintQuote{}, &cashu.PaymentMethodNotSupportedErr
	}
	if err := m.checkMintAmount(amount); err != nil {
		return storage.MintQuote{}, err
	}

	address, err := m.onchainBackend.NewAddress(ctx)
	if err != nil {
		return storage.MintQuote{}, cashu.BuildBackendErr(err)
	}

	quote := storage.MintQuote{
		Id:               uuid.NewString(),
		Amount:           amount,
		Unit:             m.unit.String(),
		Address:          address,
		MinConfirmations: m.minConfirmations,
		State:            storage.QuotePending,
	}
	if err := m.db.SaveMintQuote(quote); err != nil {
		return storage.MintQuote{}, cashu.BuildDBErr(err)
	}
	return quote, nil
}

// GetMintQuoteStateOnchain polls the on-chain backend for payment to the
// quote's address and marks the quote paid once the backend reports a
// payment of at least the quote amount with enough confirmations. When
// the stored quote carries an ObservedTxid and the backend implements
// IsPaidByTxid, only that txid is checked. The txid IsPaid reports is set
// on the returned quote but is not written to the database; only the
// state change is persisted.
func (m *Mint) GetMintQuoteStateOnchain(ctx context.Context, quoteId string) (storage.MintQuote, error) {
	if m.onchainBackend == nil {
		return storage.MintQuote{}, &cashu.PaymentMethodNotSupportedErr
	}
	quote, err := m.db.GetMintQuote(quoteId)
	if err != nil {
		return storage.MintQuote{}, &cashu.UnknownQuoteErr
	}
	if quote.State != storage.QuotePending {
		return quote, nil
	}

	if quote.ObservedTxid != "" {
		if pinned, ok := m.onchainBackend.(interface {
			IsPaidByTxid(ctx context.Context, txid string, minConfirmations uint) (bool, error)
		}); ok {
			paid, err := pinned.IsPaidByTxid(ctx, quote.ObservedTxid, quote.MinConfirmations)
			if err == nil && paid {
				m.db.UpdateMintQuoteState(quoteId, storage.QuotePaid)
				quote.State = storage.QuotePaid
			}
			return quote, nil
		}
	}

	paid, txid, err := m.onchainBackend.IsPaid(ctx, quote.Address, quote.Amount, quote.MinConfirmations)
	if err != nil {
		return storage.MintQuote{}, cashu.BuildBackendErr(err)
	}
	if paid {
		quote.ObservedTxid = txid
		m.db.UpdateMintQuoteState(quoteId, storage.QuotePaid)
		quote.State = storage.QuotePaid
	}
	return quote, nil
}

// MintTokensOnchain issues signatures against a paid on-chain mint
// quote; behaviorally identical to MintTokens once the quote is paid.
func (m *Mint) MintTokensOnchain(quoteId string, blindedMessages cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	return m.MintTokens(quoteId, blindedMessages)
}

// RequestMeltQuoteOnchain estimates the network fee for paying amount to
// address and persists a pending melt quote.
func (m *Mint) RequestMeltQuoteOnchain(ctx context.Context, address string, amount uint64) (storage.MeltQuote, error) {
	if m.onchainBackend == nil {
		return storage.MeltQuote{}, &cashu.PaymentMethodNotSupportedErr
	}
	if err := m.checkMeltAmount(amount); err != nil {
		return storage.MeltQuote{}, err
	}

	feeSat, _, err := m.onchainBackend.EstimateFee(ctx, address, amount)
	if err != nil {
		return storage.MeltQuote{}, cashu.BuildBackendErr(err)
	}

	quote := storage.MeltQuote{
		Id:         uuid.NewString(),
		Unit:       m.unit.String(),
		Address:    address,
		Amount:     amount,
		FeeReserve: feeSat,
		State:      storage.QuotePending,
	}
	if err := m.db.SaveMeltQuote(quote); err != nil {
		return storage.MeltQuote{}, cashu.BuildDBErr(err)
	}
	return quote, nil
}

// MeltTokensOnchain verifies the proofs cover the quote amount, sends
// the payout on-chain, and atomically marks the inputs spent. Unlike the
// Lightning path there is no fee-reserve change: the broadcast fee is
// paid out of the backend's own wallet, not the proofs.
func (m *Mint) MeltTokensOnchain(ctx context.Context, quoteId string, proofs cashu.Proofs) (storage.MeltQuote, string, error) {
	if m.onchainBackend == nil {
		return storage.MeltQuote{}, "", &cashu.PaymentMethodNotSupportedErr
	}
	if cashu.CheckDuplicateProofs(proofs) {
		return storage.MeltQuote{}, "", &cashu.DuplicateProofsErr
	}

	quote, err := m.db.GetMeltQuote(quoteId)
	if err != nil {
		return storage.MeltQuote{}, "", &cashu.UnknownQuoteErr
	}
	if quote.State == storage.QuoteConsumed {
		return storage.MeltQuote{}, "", &cashu.MeltQuoteAlreadyPaidErr
	}

	if err := m.verifyProofs(proofs); err != nil {
		return storage.MeltQuote{}, "", err
	}
	if proofs.Amount() < quote.Amount {
		return storage.MeltQuote{}, "", &cashu.InsufficientProofsAmountErr
	}

	txid, err := m.onchainBackend.SendCoins(ctx, quote.Address, quote.Amount, 0)
	if err != nil {
		return storage.MeltQuote{}, "", cashu.BuildBackendErr(err)
	}

	quote.Txid = txid
	quote.State = storage.QuoteConsumed
	if err := m.db.Melt(proofs, quote.Id, txid, nil, nil); err != nil {
		if cerr, ok := err.(*cashu.Error); ok {
			return storage.MeltQuote{}, "", cerr
		}
		return storage.MeltQuote{}, "", cashu.BuildDBErr(err)
	}
	return quote, txid, nil
}
