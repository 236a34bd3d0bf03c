package wallet

import (
	"errors"
	"testing"

	"github.com/cashunuts/mint/cashu"
)

func proofsOfAmounts(amounts ...uint64) cashu.Proofs {
	proofs := make(cashu.Proofs, len(amounts))
	for i, amt := range amounts {
		proofs[i] = cashu.Proof{Amount: amt, Secret: "s"}
	}
	return proofs
}

func TestSelectProofsForAmountExactSuffixMatch(t *testing.T) {
	proofs := proofsOfAmounts(1, 2, 4, 8, 16)

	selected, err := selectProofsForAmount(proofs, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.Amount() < 8 {
		t.Fatalf("selection undershoots target: got %d", selected.Amount())
	}
	// greedy suffix pop from the largest denomination down: 16 alone covers it
	if len(selected) != 1 || selected[0].Amount != 16 {
		t.Fatalf("expected single 16 proof, got %+v", selected)
	}
}

func TestSelectProofsForAmountAccumulatesFromTail(t *testing.T) {
	proofs := proofsOfAmounts(1, 2, 4)

	selected, err := selectProofsForAmount(proofs, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.Amount() < 6 {
		t.Fatalf("selection undershoots target: got %d", selected.Amount())
	}
}

func TestSelectProofsForAmountInsufficientFunds(t *testing.T) {
	proofs := proofsOfAmounts(1, 2)

	_, err := selectProofsForAmount(proofs, 100)
	if err == nil {
		t.Fatal("expected NotEnoughTokens error")
	}
	var cashuErr *cashu.Error
	if !errors.As(err, &cashuErr) || cashuErr.Code != cashu.NotEnoughTokensErrCode {
		t.Fatalf("expected NotEnoughTokens error, got %v", err)
	}
}

func TestSelectProofsForAmountZeroTarget(t *testing.T) {
	proofs := proofsOfAmounts(1, 2, 4)

	selected, err := selectProofsForAmount(proofs, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 0 {
		t.Fatalf("expected no proofs selected for a zero target, got %+v", selected)
	}
}
