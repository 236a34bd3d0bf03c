package wallet

import (
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/cashu/nuts/nut05"
	"github.com/cashunuts/mint/wallet/storage"
)

// RequestMint asks the configured mint for a bolt11 mint quote of
// amount sats and persists it locally so it can be resumed after a
// restart without re-querying the mint.
func (w *Wallet) RequestMint(amount uint64) (storage.MintQuote, error) {
	resp, err := RequestMintQuote(w.MintURL, amount, cashu.Sat.String())
	if err != nil {
		return storage.MintQuote{}, fmt.Errorf("requesting mint quote: %w", err)
	}

	quote := storage.MintQuote{
		QuoteId:        resp.Quote,
		Mint:           w.MintURL,
		Method:         cashu.Bolt11Method,
		State:          storage.QuotePending,
		Unit:           cashu.Sat.String(),
		PaymentRequest: resp.Request,
		Amount:         amount,
		Expiry:         resp.Expiry,
	}
	if err := w.db.SaveMintQuote(quote); err != nil {
		return storage.MintQuote{}, fmt.Errorf("persisting mint quote: %w", err)
	}
	return quote, nil
}

// MintQuoteState polls whether a pending mint quote's invoice has been
// paid.
func (w *Wallet) MintQuoteState(quoteId string) (bool, error) {
	resp, err := GetMintQuoteState(w.MintURL, quoteId)
	if err != nil {
		return false, err
	}
	return resp.Paid, nil
}

// GetMintQuote returns the wallet's local record of a quote it
// previously requested.
func (w *Wallet) GetMintQuote(quoteId string) (storage.MintQuote, error) {
	quote := w.db.GetMintQuoteById(quoteId)
	if quote == nil {
		return storage.MintQuote{}, fmt.Errorf("wallet: no local record of quote %s", quoteId)
	}
	return *quote, nil
}

// MintTokens exchanges a paid mint quote for amount worth of fresh
// proofs, derived deterministically from the wallet's seed, and stores
// them.
func (w *Wallet) MintTokens(quoteId string, amount uint64) (cashu.Proofs, error) {
	keyset, err := w.GetActiveSatKeyset()
	if err != nil {
		return nil, err
	}

	messages, secrets, rs, err := w.createBlindedMessages(amount, keyset)
	if err != nil {
		return nil, err
	}

	sigs, err := PostMintBolt11(w.MintURL, quoteId, messages)
	if err != nil {
		return nil, fmt.Errorf("minting tokens: %w", err)
	}

	proofs, err := w.constructProofs(sigs, secrets, rs, keyset)
	if err != nil {
		return nil, err
	}

	if err := w.db.SaveProofs(proofs); err != nil {
		return nil, fmt.Errorf("saving proofs: %w", err)
	}
	if mq := w.db.GetMintQuoteById(quoteId); mq != nil {
		mq.State = storage.QuoteConsumed
		w.db.SaveMintQuote(*mq)
	}
	return proofs, nil
}

// selectProofsForAmount chooses a minimal-suffix subset of proofs
// summing to at least target: sort ascending by amount, then pop from
// the tail until the running sum covers target. Fails NotEnoughTokens
// if the full set falls short.
func selectProofsForAmount(proofs cashu.Proofs, target uint64) (cashu.Proofs, error) {
	if target == 0 {
		return cashu.Proofs{}, nil
	}

	sorted := make(cashu.Proofs, len(proofs))
	copy(sorted, proofs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount < sorted[j].Amount })

	var selected cashu.Proofs
	var sum uint64
	for i := len(sorted) - 1; i >= 0 && sum < target; i-- {
		selected = append(selected, sorted[i])
		sum += sorted[i].Amount
	}
	if sum < target {
		return nil, &cashu.NotEnoughTokensErr
	}
	return selected, nil
}

func (w *Wallet) deleteProofs(proofs cashu.Proofs) {
	for _, p := range proofs {
		w.db.DeleteProof(p.Secret)
	}
}

// Send selects proofs covering amount and returns a TokenV3 carrying
// exactly that much. If the selected proofs overshoot amount, they are
// swapped for an exact (send, keep) split first, rotating every secret
// involved in the process.
func (w *Wallet) Send(amount uint64) (cashu.TokenV3, error) {
	if w.GetBalance() < amount {
		return cashu.TokenV3{}, &cashu.NotEnoughTokensErr
	}

	selected, err := selectProofsForAmount(w.db.GetProofs(), amount)
	if err != nil {
		return cashu.TokenV3{}, err
	}

	total := selected.Amount()
	if total == amount {
		w.deleteProofs(selected)
		return cashu.NewTokenV3(selected, w.MintURL, cashu.Sat, ""), nil
	}

	keyset, err := w.GetActiveSatKeyset()
	if err != nil {
		return cashu.TokenV3{}, err
	}

	sendMsgs, sendSecrets, sendRs, err := w.createBlindedMessages(amount, keyset)
	if err != nil {
		return cashu.TokenV3{}, err
	}
	changeMsgs, changeSecrets, changeRs, err := w.createBlindedMessages(total-amount, keyset)
	if err != nil {
		return cashu.TokenV3{}, err
	}

	allMsgs := append(append(cashu.BlindedMessages{}, sendMsgs...), changeMsgs...)
	allSecrets := append(append([]string{}, sendSecrets...), changeSecrets...)
	allRs := append(append([]*secp256k1.PrivateKey{}, sendRs...), changeRs...)

	sigs, err := PostSwap(w.MintURL, selected, allMsgs)
	if err != nil {
		return cashu.TokenV3{}, fmt.Errorf("swap: %w", err)
	}

	outProofs, err := w.constructProofs(sigs, allSecrets, allRs, keyset)
	if err != nil {
		return cashu.TokenV3{}, err
	}

	sendProofs := outProofs[:len(sendMsgs)]
	keepProofs := outProofs[len(sendMsgs):]

	w.deleteProofs(selected)
	if err := w.db.SaveProofs(keepProofs); err != nil {
		return cashu.TokenV3{}, fmt.Errorf("saving change proofs: %w", err)
	}

	return cashu.NewTokenV3(sendProofs, w.MintURL, cashu.Sat, ""), nil
}

// Receive swaps every proof in an incoming token for fresh proofs under
// this wallet's own keyset, hiding provenance and rotating secrets, and
// stores the result.
func (w *Wallet) Receive(token cashu.TokenV3) (uint64, error) {
	incoming := token.Proofs()
	if len(incoming) == 0 {
		return 0, &cashu.InvalidTokenErr
	}

	keyset, err := w.GetActiveSatKeyset()
	if err != nil {
		return 0, err
	}

	total := incoming.Amount()
	messages, secrets, rs, err := w.createBlindedMessages(total, keyset)
	if err != nil {
		return 0, err
	}

	sigs, err := PostSwap(w.MintURL, incoming, messages)
	if err != nil {
		return 0, fmt.Errorf("swap: %w", err)
	}

	proofs, err := w.constructProofs(sigs, secrets, rs, keyset)
	if err != nil {
		return 0, err
	}

	if err := w.db.SaveProofs(proofs); err != nil {
		return 0, fmt.Errorf("saving proofs: %w", err)
	}
	return total, nil
}

// PayInvoice requests a melt quote for a bolt11 invoice, selects
// proofs to cover its amount plus fee reserve, and submits the melt.
// Blinded change outputs are over-provisioned to cashu.MaxSplitLen of
// the fee reserve so the mint can sign back whatever it does not
// actually spend on fees no matter how that remainder splits; see
// createChangeOutputs and computeMeltChange mint-side.
func (w *Wallet) PayInvoice(invoice string) (nut05.PostMeltBolt11Response, error) {
	quote, err := RequestMeltQuote(w.MintURL, invoice, cashu.Sat.String())
	if err != nil {
		return nut05.PostMeltBolt11Response{}, fmt.Errorf("requesting melt quote: %w", err)
	}

	needed := quote.Amount + quote.FeeReserve
	selected, err := selectProofsForAmount(w.db.GetProofs(), needed)
	if err != nil {
		return nut05.PostMeltBolt11Response{}, err
	}

	keyset, err := w.GetActiveSatKeyset()
	if err != nil {
		return nut05.PostMeltBolt11Response{}, err
	}

	var changeMsgs cashu.BlindedMessages
	var changeSecrets []string
	var changeRs []*secp256k1.PrivateKey
	if quote.FeeReserve > 0 {
		changeMsgs, changeSecrets, changeRs, err = w.createChangeOutputs(quote.FeeReserve, keyset)
		if err != nil {
			return nut05.PostMeltBolt11Response{}, err
		}
	}

	resp, err := PostMeltBolt11(w.MintURL, quote.Quote, selected, changeMsgs)
	if err != nil {
		return nut05.PostMeltBolt11Response{}, fmt.Errorf("melt: %w", err)
	}

	if !resp.Paid {
		return resp, nil
	}

	w.deleteProofs(selected)

	if len(resp.Change) > 0 {
		changeProofs, err := w.constructProofs(resp.Change, changeSecrets[:len(resp.Change)], changeRs[:len(resp.Change)], keyset)
		if err != nil {
			return resp, fmt.Errorf("unblinding change: %w", err)
		}
		if err := w.db.SaveProofs(changeProofs); err != nil {
			return resp, fmt.Errorf("saving change proofs: %w", err)
		}
	}

	return resp, nil
}
