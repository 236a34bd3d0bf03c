package crypto

import "testing"

func TestDeriveKeysetIdVector(t *testing.T) {
	ks := GenerateKeyset("TEST_PRIVATE_KEY", "0/0/0/0", "sat", 0)

	if len(ks.Keys) != MaxOrder {
		t.Fatalf("got %d keys, want %d", len(ks.Keys), MaxOrder)
	}

	want := "1cCNIAZ2X/w1"
	if ks.Id != want {
		t.Fatalf("keyset id = %q, want %q", ks.Id, want)
	}
}

func TestDeriveKeysetIdIsDeterministic(t *testing.T) {
	a := GenerateKeyset("some-seed", "0/0/0/1", "sat", 0)
	b := GenerateKeyset("some-seed", "0/0/0/1", "sat", 0)

	if a.Id != b.Id {
		t.Fatalf("same (seed, path) produced different ids: %q vs %q", a.Id, b.Id)
	}

	c := GenerateKeyset("some-seed", "0/0/0/2", "sat", 0)
	if a.Id == c.Id {
		t.Fatalf("different paths produced the same id: %q", a.Id)
	}
}

func TestMintPubkeyIsNotAnAmountKey(t *testing.T) {
	ks := GenerateKeyset("TEST_PRIVATE_KEY", "0/0/0/0", "sat", 0)

	for _, kp := range ks.Keys {
		if kp.PublicKey.IsEqual(ks.MintPubkey) {
			t.Fatal("mint pubkey collided with an amount key")
		}
	}
}
