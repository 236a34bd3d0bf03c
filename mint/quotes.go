package mint

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/mint/storage"
)

func (m *Mint) checkMintAmount(amount uint64) *cashu.Error {
	limits := m.limits.MintingSettings
	if limits.MaxAmount > 0 && amount > limits.MaxAmount {
		return &cashu.MintAmountExceededErr
	}
	if limits.MinAmount > 0 && amount < limits.MinAmount {
		return &cashu.InvoiceAmountTooLowErr
	}
	return nil
}

func (m *Mint) checkMeltAmount(amount uint64) *cashu.Error {
	limits := m.limits.MeltingSettings
	if limits.MaxAmount > 0 && amount > limits.MaxAmount {
		return &cashu.MeltAmountExceededErr
	}
	return nil
}

// RequestMintQuote creates a Lightning invoice for amount and persists a
// pending mint quote against it.
func (m *Mint) RequestMintQuote(ctx context.Context, amount uint64) (storage.MintQuote, error) {
	if err := m.checkMintAmount(amount); err != nil {
		return storage.MintQuote{}, err
	}

	invoice, err := m.lightningClient.CreateInvoice(ctx, amount)
	if err != nil {
		m.logErrorf("lightningClient.CreateInvoice: %v", err)
		return storage.MintQuote{}, cashu.BuildBackendErr(err)
	}

	quote := storage.MintQuote{
		Id:             uuid.NewString(),
		Amount:         amount,
		Unit:           m.unit.String(),
		PaymentRequest: invoice.PaymentRequest,
		PaymentHash:    invoice.PaymentHash,
		State:          storage.QuotePending,
		Expiry:         int64(invoice.Expiry),
	}

	if err := m.db.SaveMintQuote(quote); err != nil {
		m.logErrorf("db.SaveMintQuote: %v", err)
		return storage.MintQuote{}, cashu.BuildDBErr(err)
	}
	return quote, nil
}

// GetMintQuoteState reports a mint quote's current state, polling the
// Lightning backend and updating it to paid if the invoice settled since
// it was last checked.
func (m *Mint) GetMintQuoteState(ctx context.Context, quoteId string) (storage.MintQuote, error) {
	quote, err := m.db.GetMintQuote(quoteId)
	if err != nil {
		return storage.MintQuote{}, &cashu.UnknownQuoteErr
	}

	if quote.State == storage.QuotePending {
		paid, err := m.lightningClient.IsInvoicePaid(ctx, quote.PaymentHash)
		if err != nil {
			m.logErrorf("lightningClient.IsInvoicePaid: %v", err)
			return storage.MintQuote{}, cashu.BuildBackendErr(err)
		}
		if paid {
			if err := m.db.UpdateMintQuoteState(quoteId, storage.QuotePaid); err != nil {
				return storage.MintQuote{}, cashu.BuildDBErr(err)
			}
			quote.State = storage.QuotePaid
		}
	}
	return quote, nil
}

// MintTokens issues blind signatures over blindedMessages against a paid
// mint quote. The quote may be consumed at most once: IssueMintQuote's
// conditional update makes this call idempotent under concurrent retries
// with the same quote id.
func (m *Mint) MintTokens(quoteId string, blindedMessages cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	quote, err := m.db.GetMintQuote(quoteId)
	if err != nil {
		return nil, &cashu.UnknownQuoteErr
	}

	switch quote.State {
	case storage.QuotePending:
		return nil, &cashu.MintQuoteRequestNotPaidErr
	case storage.QuoteConsumed:
		return nil, &cashu.MintQuoteAlreadyIssuedErr
	}

	if blindedMessages.Amount() != quote.Amount {
		return nil, &cashu.SwapAmountMismatchErr
	}
	if cashu.CheckDuplicateBlindedMessages(blindedMessages) {
		return nil, &cashu.SwapHasDuplicatePromisesErr
	}

	signatures, err := m.signBlindedMessages(blindedMessages)
	if err != nil {
		return nil, err
	}

	B_s := make([]string, len(blindedMessages))
	for i, bm := range blindedMessages {
		B_s[i] = bm.B_
	}

	if err := m.db.IssueMintQuote(quoteId, B_s, signatures); err != nil {
		if cerr, ok := err.(*cashu.Error); ok {
			return nil, cerr
		}
		return nil, cashu.BuildDBErr(err)
	}
	return signatures, nil
}

// signBlindedMessages signs each message under the active keyset's
// amount-specific key. Every message must carry an amount for which the
// active keyset holds a key, and must reference either the active keyset
// or be rejected outright: the mint never signs under a retired keyset.
func (m *Mint) signBlindedMessages(blindedMessages cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	active := m.GetActiveKeyset()

	signatures := make(cashu.BlindedSignatures, len(blindedMessages))
	for i, bm := range blindedMessages {
		if bm.Id != active.Id {
			return nil, &cashu.InactiveKeysetSignatureRequestErr
		}
		kp, ok := active.Keys[bm.Amount]
		if !ok {
			return nil, &cashu.UnknownDenominationErr
		}

		bBytes, err := decodeHexPoint(bm.B_)
		if err != nil {
			return nil, &cashu.InvalidProofErr
		}
		C_, err := signBlinded(bBytes, kp.PrivateKey)
		if err != nil {
			return nil, cashu.BuildError(fmt.Sprintf("signing blinded message: %v", err), cashu.CryptoErrCode)
		}

		signatures[i] = cashu.BlindedSignature{Amount: bm.Amount, Id: active.Id, C_: C_}
	}
	return signatures, nil
}
