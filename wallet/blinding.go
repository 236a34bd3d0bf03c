package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
)

// createBlindedMessages derives `len(cashu.AmountSplit(amount))` fresh
// (secret, r) pairs from the wallet's seed, advances the keyset's
// NUT-13 counter past them, and blinds each into an output ready to
// submit to the mint.
func (w *Wallet) createBlindedMessages(amount uint64, keyset crypto.WalletKeyset) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	return w.deriveBlindedOutputs(cashu.AmountSplit(amount), keyset)
}

// createChangeOutputs derives blank change outputs for a melt's fee
// reserve. The mint doesn't learn the Lightning backend's actual routing
// fee until after payment, so it may need to split the unspent remainder
// of feeReserve into more denominations than AmountSplit(feeReserve)
// itself would require (e.g. reserve=4, actual fee=1 needs split(3) =
// [2,1], two outputs, where split(4) = [4] is only one). Each output's
// Amount is a placeholder the mint overwrites before signing, so
// provisioning cashu.MaxSplitLen(feeReserve) of them covers every
// possible actual fee without over- or under-committing outputs.
func (w *Wallet) createChangeOutputs(feeReserve uint64, keyset crypto.WalletKeyset) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	n := cashu.MaxSplitLen(feeReserve)
	split := make([]uint64, n)
	for i := range split {
		split[i] = 1
	}
	return w.deriveBlindedOutputs(split, keyset)
}

// deriveBlindedOutputs derives one fresh (secret, r) pair per entry in
// split from the wallet's seed, advances the keyset's NUT-13 counter
// past them, and blinds each into an output ready to submit to the mint.
func (w *Wallet) deriveBlindedOutputs(split []uint64, keyset crypto.WalletKeyset) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	k := KeysetCounterSpace(keyset.Id)
	counter := w.db.GetKeysetCounter(keyset.Id)

	messages := make(cashu.BlindedMessages, len(split))
	secrets := make([]string, len(split))
	rs := make([]*secp256k1.PrivateKey, len(split))

	for i, amt := range split {
		n := counter + uint32(i)

		secret, err := DeriveSecret(w.seed, k, n)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("deriving secret: %w", err)
		}
		r, err := DeriveBlindingFactor(w.seed, k, n)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("deriving blinding factor: %w", err)
		}

		B_, r, err := crypto.BlindMessage([]byte(secret), r.Serialize())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("blinding message: %w", err)
		}

		messages[i] = cashu.NewBlindedMessage(keyset.Id, amt, B_)
		secrets[i] = secret
		rs[i] = r
	}

	if err := w.db.IncrementKeysetCounter(keyset.Id, uint32(len(split))); err != nil {
		return nil, nil, nil, fmt.Errorf("advancing keyset counter: %w", err)
	}

	return messages, secrets, rs, nil
}

// constructProofs unblinds a mint's signatures into spendable proofs:
// C = C_ - r*K for each output's amount-specific public key K.
func (w *Wallet) constructProofs(sigs cashu.BlindedSignatures, secrets []string, rs []*secp256k1.PrivateKey, keyset crypto.WalletKeyset) (cashu.Proofs, error) {
	if len(sigs) != len(secrets) || len(sigs) != len(rs) {
		return nil, fmt.Errorf("wallet: mismatched signature/secret/blinding-factor counts")
	}

	proofs := make(cashu.Proofs, len(sigs))
	for i, sig := range sigs {
		cBytes, err := hex.DecodeString(sig.C_)
		if err != nil {
			return nil, fmt.Errorf("decoding C_: %w", err)
		}
		C_, err := secp256k1.ParsePubKey(cBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing C_: %w", err)
		}

		K, ok := keyset.PublicKeys[sig.Amount]
		if !ok {
			return nil, fmt.Errorf("wallet: keyset %s has no key for amount %d", keyset.Id, sig.Amount)
		}

		C, err := crypto.UnblindSignature(C_, rs[i], K)
		if err != nil {
			return nil, fmt.Errorf("unblinding signature: %w", err)
		}

		proofs[i] = cashu.Proof{
			Amount: sig.Amount,
			Id:     sig.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}
	return proofs, nil
}
