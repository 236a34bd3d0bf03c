package mint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	decodepay "github.com/nbd-wtf/ln-decodepay"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/mint/lightning"
	"github.com/cashunuts/mint/mint/storage"
)

const quoteExpiry = time.Hour

// RequestMeltQuote decodes a Lightning invoice, computes the fee reserve
// the backend requires to pay it, and persists a pending melt quote. If a
// mint quote already exists for the same payment hash, the two can be
// settled internally without ever touching the Lightning backend, so the
// fee reserve is zeroed.
func (m *Mint) RequestMeltQuote(ctx context.Context, request string) (storage.MeltQuote, error) {
	bolt11, err := decodepay.Decodepay(request)
	if err != nil {
		return storage.MeltQuote{}, cashu.BuildError("invalid invoice: "+err.Error(), cashu.MeltQuoteErrCode)
	}
	if bolt11.MSatoshi == 0 {
		return storage.MeltQuote{}, cashu.BuildError("invoice has no amount", cashu.MeltQuoteErrCode)
	}
	satAmount := uint64(bolt11.MSatoshi) / 1000

	if err := m.checkMeltAmount(satAmount); err != nil {
		return storage.MeltQuote{}, err
	}

	fee := m.lightningClient.FeeReserve(uint64(bolt11.MSatoshi))
	m.logInfof("melt quote requested for invoice of %d sats, fee reserve %d", satAmount, fee)

	quote := storage.MeltQuote{
		Id:             uuid.NewString(),
		Unit:           m.unit.String(),
		PaymentRequest: request,
		PaymentHash:    bolt11.PaymentHash,
		Amount:         satAmount,
		FeeReserve:     fee,
		State:          storage.QuotePending,
		Expiry:         time.Now().Add(quoteExpiry).Unix(),
	}

	if mintQuote, err := m.db.GetMintQuoteByPaymentHash(bolt11.PaymentHash); err == nil {
		m.logDebugf("melt quote %s matches mint quote %s on payment hash, settling internally with no fee reserve",
			quote.Id, mintQuote.Id)
		quote.FeeReserve = 0
	}

	if err := m.db.SaveMeltQuote(quote); err != nil {
		return storage.MeltQuote{}, cashu.BuildDBErr(err)
	}
	return quote, nil
}

// GetMeltQuoteState reports a melt quote's state, polling the backend for
// an outgoing payment still pending.
func (m *Mint) GetMeltQuoteState(ctx context.Context, quoteId string) (storage.MeltQuote, error) {
	quote, err := m.db.GetMeltQuote(quoteId)
	if err != nil {
		return storage.MeltQuote{}, &cashu.UnknownQuoteErr
	}

	if quote.State == storage.QuotePending {
		payment, err := m.lightningClient.OutgoingPaymentStatus(ctx, quote.PaymentHash)
		if err == nil && payment.Status == lightning.Succeeded {
			quote.Preimage = payment.Preimage
			quote.State = storage.QuoteConsumed
			m.db.UpdateMeltQuoteState(quoteId, storage.QuoteConsumed)
		}
	}
	return quote, nil
}

// MeltTokens redeems proofs to pay a melt quote's Lightning invoice. The
// supplied proofs are held pending for the duration of the payment
// attempt so a crash mid-payment cannot let them be spent elsewhere; on
// success they are atomically marked spent and the quote marked consumed
// in the same database call.
func (m *Mint) MeltTokens(ctx context.Context, quoteId string, proofs cashu.Proofs, changeOutputs cashu.BlindedMessages) (storage.MeltQuote, cashu.BlindedSignatures, error) {
	if cashu.CheckDuplicateProofs(proofs) {
		return storage.MeltQuote{}, nil, &cashu.DuplicateProofsErr
	}

	quote, err := m.db.GetMeltQuote(quoteId)
	if err != nil {
		return storage.MeltQuote{}, nil, &cashu.UnknownQuoteErr
	}
	switch quote.State {
	case storage.QuoteConsumed:
		return storage.MeltQuote{}, nil, &cashu.MeltQuoteAlreadyPaidErr
	case storage.QuotePaid:
		return storage.MeltQuote{}, nil, &cashu.MeltQuotePendingErr
	}

	if err := m.verifyProofs(proofs); err != nil {
		return storage.MeltQuote{}, nil, err
	}

	fees := m.TransactionFees(proofs)
	if proofs.Amount() < quote.Amount+quote.FeeReserve+uint64(fees) {
		return storage.MeltQuote{}, nil, &cashu.InsufficientProofsAmountErr
	}

	if quote.FeeReserve > 0 && len(changeOutputs) < cashu.MaxSplitLen(quote.FeeReserve) {
		return storage.MeltQuote{}, nil, &cashu.InsufficientChangeOutputsErr
	}

	if err := m.db.AddPendingProofs(proofs, quote.Id); err != nil {
		return storage.MeltQuote{}, nil, cashu.BuildDBErr(err)
	}
	if err := m.db.UpdateMeltQuoteState(quote.Id, storage.QuotePaid); err != nil {
		return storage.MeltQuote{}, nil, cashu.BuildDBErr(err)
	}

	var preimage string
	var actualFeesSat uint64
	if internalQuote, err := m.db.GetMintQuoteByPaymentHash(quote.PaymentHash); err == nil {
		m.logDebugf("settling melt quote %s internally against mint quote %s", quote.Id, internalQuote.Id)
		preimage = FakeInternalPreimage
		m.db.UpdateMintQuoteState(internalQuote.Id, storage.QuoteConsumed)
	} else {
		payment, sendErr := m.lightningClient.SendPayment(ctx, quote.PaymentRequest, quote.FeeReserve*1000)

		status := payment.Status
		if sendErr != nil && status != lightning.Failed {
			status = lightning.Failed
		}

		switch status {
		case lightning.Succeeded:
			preimage = payment.Preimage
			actualFeesSat = payment.FeeMsat / 1000
		case lightning.Pending:
			return quote, nil, nil
		case lightning.Failed:
			outStatus, statusErr := m.lightningClient.OutgoingPaymentStatus(ctx, quote.PaymentHash)
			switch {
			case statusErr == nil && outStatus.Status == lightning.Succeeded:
				preimage = outStatus.Preimage
				actualFeesSat = outStatus.FeeMsat / 1000
			case statusErr == nil && outStatus.Status == lightning.Pending:
				return quote, nil, nil
			default:
				m.db.RemovePendingProofs(proofSecrets(proofs))
				m.db.UpdateMeltQuoteState(quote.Id, storage.QuotePending)
				failErr := sendErr
				if failErr == nil {
					failErr = statusErr
				}
				if failErr == nil {
					failErr = errors.New("lightning payment failed")
				}
				return quote, nil, cashu.BuildBackendErr(failErr)
			}
		}
	}

	change, err := m.computeMeltChange(quote.FeeReserve, actualFeesSat, changeOutputs)
	if err != nil {
		return storage.MeltQuote{}, nil, err
	}

	B_s := make([]string, len(change))
	for i, bm := range changeOutputs[:len(change)] {
		B_s[i] = bm.B_
	}

	quote.Preimage = preimage
	quote.State = storage.QuoteConsumed
	if err := m.db.Melt(proofs, quote.Id, preimage, B_s, change); err != nil {
		if cerr, ok := err.(*cashu.Error); ok {
			return storage.MeltQuote{}, nil, cerr
		}
		return storage.MeltQuote{}, nil, cashu.BuildDBErr(err)
	}

	return quote, change, nil
}

// computeMeltChange signs blinded change outputs for the portion of the
// fee reserve the Lightning backend did not actually spend on routing
// fees. By the time this runs the payment has already gone out, so a
// wallet offering fewer change outputs than the reserve split needs
// (which MeltTokens' pre-payment check should have already caught) costs
// the difference rather than stranding a completed payment.
func (m *Mint) computeMeltChange(feeReserve, actualFees uint64, changeOutputs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	if feeReserve <= actualFees {
		return cashu.BlindedSignatures{}, nil
	}

	split := cashu.AmountSplit(feeReserve - actualFees)
	if len(changeOutputs) < len(split) {
		m.logInfof("melt change split needs %d outputs but only %d were provided, returning no change", len(split), len(changeOutputs))
		return cashu.BlindedSignatures{}, nil
	}

	messages := make(cashu.BlindedMessages, len(split))
	for i, amount := range split {
		messages[i] = changeOutputs[i]
		messages[i].Amount = amount
	}
	return m.signBlindedMessages(messages)
}

func proofSecrets(proofs cashu.Proofs) []string {
	Ys := make([]string, len(proofs))
	for i, p := range proofs {
		Ys[i] = proofY(p.Secret)
	}
	return Ys
}

// FakeInternalPreimage marks a melt quote settled without the Lightning
// backend because a matching mint quote covered the same invoice.
const FakeInternalPreimage = "internal"
