package mint

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/cashunuts/mint/cashu"
	"github.com/cashunuts/mint/crypto"
	"github.com/cashunuts/mint/mint/lightning"
	"github.com/cashunuts/mint/mint/storage/sqlite"
)

// newTestMint builds a Mint around a real, temp-dir-backed sqlite store
// and a single sat keyset, the same wiring LoadMint does minus the
// on-disk config/log-file plumbing a unit test has no use for.
func newTestMint(t *testing.T, lc lightning.Client) *Mint {
	t.Helper()
	db, err := sqlite.InitSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	keyset := crypto.GenerateKeyset("test-mint-seed", "m/0'", cashu.Sat.String(), 0)

	return &Mint{
		db:              db,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		keysets:         map[string]crypto.MintKeyset{keyset.Id: *keyset},
		activeKeysetId:  keyset.Id,
		unit:            cashu.Sat,
		lightningClient: lc,
	}
}

// blindedOutput builds one client-side blinded message for amount under
// keyset, returning the values the caller needs to unblind whatever
// signature the mint returns for it.
func blindedOutput(t *testing.T, keysetId string, amount uint64) (cashu.BlindedMessage, string, *secp256k1.PrivateKey) {
	t.Helper()
	secret, err := cashu.GenerateRandomSecret()
	require.NoError(t, err)
	B_, r, err := crypto.BlindMessage([]byte(secret), nil)
	require.NoError(t, err)
	return cashu.NewBlindedMessage(keysetId, amount, B_), secret, r
}

func blindedOutputsForSplit(t *testing.T, keysetId string, amount uint64) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey) {
	t.Helper()
	split := cashu.AmountSplit(amount)
	messages := make(cashu.BlindedMessages, len(split))
	secrets := make([]string, len(split))
	rs := make([]*secp256k1.PrivateKey, len(split))
	for i, amt := range split {
		messages[i], secrets[i], rs[i] = blindedOutput(t, keysetId, amt)
	}
	return messages, secrets, rs
}

// unblindProofs recovers the Proofs a wallet would keep from the mint's
// signatures over the blinded messages built by blindedOutputsForSplit.
func unblindProofs(t *testing.T, keyset crypto.MintKeyset, sigs cashu.BlindedSignatures, secrets []string, rs []*secp256k1.PrivateKey) cashu.Proofs {
	t.Helper()
	proofs := make(cashu.Proofs, len(sigs))
	for i, sig := range sigs {
		C_, err := decodeHexPoint(sig.C_)
		require.NoError(t, err)
		kp, ok := keyset.Keys[sig.Amount]
		require.True(t, ok)
		C, err := crypto.UnblindSignature(C_, rs[i], kp.PublicKey)
		require.NoError(t, err)
		proofs[i] = cashu.Proof{Amount: sig.Amount, Id: sig.Id, Secret: secrets[i], C: hex.EncodeToString(C.SerializeCompressed())}
	}
	return proofs
}

func mintAmount(t *testing.T, m *Mint, amount uint64) cashu.Proofs {
	t.Helper()
	ctx := context.Background()

	quote, err := m.RequestMintQuote(ctx, amount)
	require.NoError(t, err)

	quote, err = m.GetMintQuoteState(ctx, quote.Id)
	require.NoError(t, err)
	require.Equal(t, "PAID", quote.State.String())

	keyset := m.GetActiveKeyset()
	messages, secrets, rs := blindedOutputsForSplit(t, keyset.Id, amount)

	sigs, err := m.MintTokens(quote.Id, messages)
	require.NoError(t, err)

	return unblindProofs(t, keyset, sigs, secrets, rs)
}

func TestMintSwapRoundTrip(t *testing.T) {
	m := newTestMint(t, lightning.NewFakeBackend())

	proofs := mintAmount(t, m, 13)
	require.Equal(t, uint64(13), proofs.Amount())

	for _, p := range proofs {
		keyset := m.GetActiveKeyset()
		kp, ok := keyset.Keys[p.Amount]
		require.True(t, ok)
		C, err := decodeHexPoint(p.C)
		require.NoError(t, err)
		require.True(t, crypto.Verify([]byte(p.Secret), kp.PrivateKey, C))
	}

	keyset := m.GetActiveKeyset()
	outMessages, outSecrets, outRs := blindedOutputsForSplit(t, keyset.Id, 13)
	sigs, err := m.Swap(proofs, outMessages)
	require.NoError(t, err)
	require.Equal(t, uint64(13), sigs.Amount())

	swapped := unblindProofs(t, keyset, sigs, outSecrets, outRs)
	require.Equal(t, uint64(13), swapped.Amount())
}

func TestSwapRejectsDoubleSpend(t *testing.T) {
	m := newTestMint(t, lightning.NewFakeBackend())
	proofs := mintAmount(t, m, 4)

	keyset := m.GetActiveKeyset()
	messages, _, _ := blindedOutputsForSplit(t, keyset.Id, 4)
	_, err := m.Swap(proofs, messages)
	require.NoError(t, err)

	replayMessages, _, _ := blindedOutputsForSplit(t, keyset.Id, 4)
	_, err = m.Swap(proofs, replayMessages)
	require.ErrorIs(t, err, &cashu.ProofAlreadyUsedErr)
}

// Amount conservation holds unconditionally: a swap can never be
// accepted with outputs that don't exactly match inputs, regardless of
// any keyset input fee configuration.
func TestSwapRejectsAmountMismatch(t *testing.T) {
	m := newTestMint(t, lightning.NewFakeBackend())
	proofs := mintAmount(t, m, 8)

	keyset := m.GetActiveKeyset()
	messages, _, _ := blindedOutputsForSplit(t, keyset.Id, 4)
	_, err := m.Swap(proofs, messages)
	require.ErrorIs(t, err, &cashu.SwapAmountMismatchErr)
}

// Reproduces the overpay-with-change scenario: an invoice for 20 sats
// paid with 60 sats of proofs and a 4 sat fee reserve, where the
// Lightning backend actually spends 2 sats on routing, leaving 2 sats
// of change signed back to the wallet's blinded outputs.
func TestMeltWithChange(t *testing.T) {
	fb := lightning.NewFakeBackend()
	fb.ReserveFeeMsat = 4000
	fb.PaymentFeeMsat = 2000
	m := newTestMint(t, fb)
	ctx := context.Background()

	proofs := mintAmount(t, m, 60)

	invoice, err := fb.CreateInvoice(ctx, 20)
	require.NoError(t, err)

	meltQuote, err := m.RequestMeltQuote(ctx, invoice.PaymentRequest)
	require.NoError(t, err)
	require.Equal(t, uint64(20), meltQuote.Amount)
	require.Equal(t, uint64(4), meltQuote.FeeReserve)

	// The mint requires cashu.MaxSplitLen(4) = 3 change outputs; split(7)
	// provides three, whose amounts the mint overwrites before signing.
	keyset := m.GetActiveKeyset()
	changeMessages, changeSecrets, changeRs := blindedOutputsForSplit(t, keyset.Id, 7)

	quote, change, err := m.MeltTokens(ctx, meltQuote.Id, proofs, changeMessages)
	require.NoError(t, err)
	require.Equal(t, "CONSUMED", quote.State.String())
	require.Equal(t, uint64(2), change.Amount())

	changeProofs := unblindProofs(t, keyset, change, changeSecrets[:len(change)], changeRs[:len(change)])
	require.Equal(t, uint64(2), changeProofs.Amount())
}

// A melt quote whose fee reserve split needs more change outputs than
// the wallet supplied must fail hard rather than silently drop value.
func TestMeltInsufficientChangeOutputs(t *testing.T) {
	fb := lightning.NewFakeBackend()
	fb.ReserveFeeMsat = 4000
	m := newTestMint(t, fb)
	ctx := context.Background()

	proofs := mintAmount(t, m, 60)

	invoice, err := fb.CreateInvoice(ctx, 20)
	require.NoError(t, err)
	meltQuote, err := m.RequestMeltQuote(ctx, invoice.PaymentRequest)
	require.NoError(t, err)

	_, _, err = m.MeltTokens(ctx, meltQuote.Id, proofs, nil)
	require.ErrorIs(t, err, &cashu.InsufficientChangeOutputsErr)
}
