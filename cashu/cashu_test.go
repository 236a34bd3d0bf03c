package cashu

import (
	"testing"
)

func TestAmountSplitVectors(t *testing.T) {
	cases := []struct {
		amount uint64
		want   []uint64
	}{
		{13, []uint64{1, 4, 8}},
		{63, []uint64{1, 2, 4, 8, 16, 32}},
		{64, []uint64{64}},
		{0, []uint64{}},
	}

	for _, c := range cases {
		got := AmountSplit(c.amount)
		if len(got) != len(c.want) {
			t.Fatalf("AmountSplit(%d) = %v, want %v", c.amount, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("AmountSplit(%d) = %v, want %v", c.amount, got, c.want)
			}
		}
	}
}

func TestAmountSplitSumsToAmount(t *testing.T) {
	for _, amount := range []uint64{1, 2, 3, 100, 1023, 1 << 40, 0} {
		split := AmountSplit(amount)
		var sum uint64
		for _, v := range split {
			sum += v
			if v&(v-1) != 0 && v != 0 {
				t.Fatalf("split element %d of amount %d is not a power of two", v, amount)
			}
		}
		if sum != amount {
			t.Fatalf("sum(split(%d)) = %d, want %d", amount, sum, amount)
		}
	}
}

func TestCheckDuplicateProofs(t *testing.T) {
	proofs := Proofs{
		{Amount: 1, Id: "a", Secret: "s1", C: "c1"},
		{Amount: 2, Id: "a", Secret: "s2", C: "c2"},
	}
	if CheckDuplicateProofs(proofs) {
		t.Fatal("expected no duplicates")
	}

	proofs = append(proofs, proofs[0])
	if !CheckDuplicateProofs(proofs) {
		t.Fatal("expected duplicate to be detected")
	}
}

func TestTokenV3RoundTrip(t *testing.T) {
	proofs := Proofs{
		{Amount: 2, Id: "00deadbeef00dead", Secret: "secret-one", C: "02aa"},
		{Amount: 8, Id: "00deadbeef00dead", Secret: "secret-two", C: "02bb"},
	}
	token := NewTokenV3(proofs, "https://8333.space:3338", Sat, "")

	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if serialized[:len(TokenV3Prefix)] != TokenV3Prefix {
		t.Fatalf("serialized token missing prefix: %s", serialized)
	}

	decoded, err := DecodeTokenV3(serialized)
	if err != nil {
		t.Fatalf("DecodeTokenV3: %v", err)
	}

	if decoded.Amount() != token.Amount() {
		t.Fatalf("amount mismatch after round trip: got %d want %d", decoded.Amount(), token.Amount())
	}
	if decoded.Mint() != "https://8333.space:3338" {
		t.Fatalf("mint url mismatch after round trip: %q", decoded.Mint())
	}

	reserialized, err := decoded.Serialize()
	if err != nil {
		t.Fatalf("Serialize (reserialize): %v", err)
	}
	if reserialized != serialized {
		t.Fatalf("re-serialized token is not byte-identical:\n%s\n%s", serialized, reserialized)
	}
}

func TestDecodeTokenV3RejectsMissingPrefix(t *testing.T) {
	if _, err := DecodeTokenV3("notacashutoken"); err == nil {
		t.Fatal("expected error for missing cashuA prefix")
	}
}

func TestDecodeTokenV3AcceptsUnpaddedBase64(t *testing.T) {
	proofs := Proofs{{Amount: 1, Id: "00aa", Secret: "s", C: "02cc"}}
	token := NewTokenV3(proofs, "https://mint.example", Sat, "")

	padded, err := token.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// strip padding manually to emulate a wallet that encodes unpadded
	unpadded := padded
	for unpadded[len(unpadded)-1] == '=' {
		unpadded = unpadded[:len(unpadded)-1]
	}

	decoded, err := DecodeTokenV3(unpadded)
	if err != nil {
		t.Fatalf("DecodeTokenV3(unpadded): %v", err)
	}
	if decoded.Amount() != 1 {
		t.Fatalf("unexpected amount: %d", decoded.Amount())
	}
}

func TestTokenV4RoundTrip(t *testing.T) {
	proofs := Proofs{
		{Amount: 4, Id: "00aabbccddeeff00", Secret: "s1", C: "02aaaa"},
		{Amount: 16, Id: "00aabbccddeeff00", Secret: "s2", C: "02bbbb"},
	}

	serialized, err := EncodeTokenV4(proofs, "https://mint.example", Sat, "memo")
	if err != nil {
		t.Fatalf("EncodeTokenV4: %v", err)
	}

	decodedProofs, mintURL, unit, err := DecodeTokenV4(serialized)
	if err != nil {
		t.Fatalf("DecodeTokenV4: %v", err)
	}
	if decodedProofs.Amount() != proofs.Amount() {
		t.Fatalf("amount mismatch: got %d want %d", decodedProofs.Amount(), proofs.Amount())
	}
	if mintURL != "https://mint.example" {
		t.Fatalf("mint url mismatch: %q", mintURL)
	}
	if unit != Sat {
		t.Fatalf("unit mismatch: %v", unit)
	}
}
