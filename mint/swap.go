package mint

import (
	"encoding/hex"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
)

// proofY returns the hex-encoded hash_to_curve point of a proof's
// secret, the key every proof is indexed and looked up by in the used
// and pending proof tables.
func proofY(secret string) string {
	Y := crypto.HashToCurve([]byte(secret))
	return hex.EncodeToString(Y.SerializeCompressed())
}

// Swap exchanges a set of proofs for new blinded signatures of exactly
// equal total value, invalidating the inputs in the same database
// transaction that persists the new signatures so a proof can never be
// accepted twice even under concurrent requests. Amount conservation
// holds unconditionally here: any per-keyset input fee is collected at
// melt time against the fee reserve, never by shorting a swap's outputs.
func (m *Mint) Swap(proofs cashu.Proofs, blindedMessages cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	if len(proofs) == 0 {
		return nil, &cashu.NoProofsProvidedErr
	}
	if cashu.CheckDuplicateProofs(proofs) {
		return nil, &cashu.DuplicateProofsErr
	}
	if cashu.CheckDuplicateBlindedMessages(blindedMessages) {
		return nil, &cashu.SwapHasDuplicatePromisesErr
	}

	if err := m.verifyProofs(proofs); err != nil {
		return nil, err
	}

	if proofs.Amount() != blindedMessages.Amount() {
		return nil, &cashu.SwapAmountMismatchErr
	}

	signatures, err := m.signBlindedMessages(blindedMessages)
	if err != nil {
		return nil, err
	}

	B_s := make([]string, len(blindedMessages))
	for i, bm := range blindedMessages {
		B_s[i] = bm.B_
	}

	if err := m.db.Swap(proofs, B_s, signatures); err != nil {
		if cerr, ok := err.(*cashu.Error); ok {
			return nil, cerr
		}
		return nil, cashu.BuildDBErr(err)
	}
	return signatures, nil
}

// verifyProofs checks that every proof references a known keyset and
// amount, is not a duplicate of an already-spent proof, and carries a
// signature that verifies under that keyset's amount key.
func (m *Mint) verifyProofs(proofs cashu.Proofs) error {
	Ys := make([]string, len(proofs))
	for i, p := range proofs {
		Ys[i] = proofY(p.Secret)
	}

	used, err := m.db.GetProofsUsed(Ys)
	if err != nil {
		return cashu.BuildDBErr(err)
	}
	if len(used) > 0 {
		return &cashu.ProofAlreadyUsedErr
	}

	pending, err := m.db.GetPendingProofs(Ys)
	if err != nil {
		return cashu.BuildDBErr(err)
	}
	if len(pending) > 0 {
		return &cashu.ProofPendingErr
	}

	for _, p := range proofs {
		keyset, ok := m.GetKeyset(p.Id)
		if !ok {
			return &cashu.UnknownKeysetErr
		}
		kp, ok := keyset.Keys[p.Amount]
		if !ok {
			return &cashu.UnknownDenominationErr
		}

		C, err := decodeHexPoint(p.C)
		if err != nil {
			return &cashu.InvalidProofErr
		}

		if !verifyProofSignature([]byte(p.Secret), kp.PrivateKey, C) {
			return &cashu.InvalidProofErr
		}
	}
	return nil
}

// TransactionFees sums each input proof's keyset fee rate (parts per
// thousand) and rounds up to the nearest whole satoshi. Used by melt to
// size how much of a proof set must cover the invoice plus Lightning's
// fee reserve before the mint's own input-processing fee is considered;
// swap never charges it, so amount conservation there is unconditional.
func (m *Mint) TransactionFees(inputs cashu.Proofs) uint {
	var fees uint
	for _, p := range inputs {
		keyset, ok := m.GetKeyset(p.Id)
		if !ok {
			continue
		}
		fees += keyset.InputFeePpk
	}
	return (fees + 999) / 1000
}
