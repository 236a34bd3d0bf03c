package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestHashToCurveVectors(t *testing.T) {
	cases := []struct {
		msg  []byte
		want string
	}{
		{
			msg:  bytes.Repeat([]byte{0x00}, 32),
			want: "0266687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925",
		},
		{
			msg:  append(bytes.Repeat([]byte{0x00}, 31), 0x01),
			want: "02ec4916dd28fc4c10d78e287ca5d9cc51ee1ae73cbfde08c6b37324cbfaac8bc5",
		},
		{
			msg:  append(bytes.Repeat([]byte{0x00}, 31), 0x02),
			want: "02076c988b353fcbb748178ecb286bc9d0b4acf474d4ba31ba62334e46c97c416a",
		},
	}

	for _, c := range cases {
		got := HashToCurve(c.msg)
		if hex.EncodeToString(got.SerializeCompressed()) != c.want {
			t.Errorf("HashToCurve(%x) = %x, want %s", c.msg, got.SerializeCompressed(), c.want)
		}
	}
}

func TestBDHKEVectors(t *testing.T) {
	secretMsg := []byte("test_message")
	one := append(bytes.Repeat([]byte{0x00}, 31), 0x01)

	B_, r, err := BlindMessage(secretMsg, one)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}
	wantB_ := "02a9acc1e48c25eeeb9289b5031cc57da9fe72f3fe2861d264bdc074209b107ba2"
	if hex.EncodeToString(B_.SerializeCompressed()) != wantB_ {
		t.Fatalf("B_ = %x, want %s", B_.SerializeCompressed(), wantB_)
	}

	a := secp256k1.PrivKeyFromBytes(one)
	C_, err := SignBlindedMessage(B_, a)
	if err != nil {
		t.Fatalf("SignBlindedMessage: %v", err)
	}
	// a == 1, so C_ == B_
	if !C_.IsEqual(B_) {
		t.Fatalf("C_ = %x, want %x (a=1 is the identity scalar)", C_.SerializeCompressed(), B_.SerializeCompressed())
	}

	A := a.PubKey()
	C, err := UnblindSignature(C_, r, A)
	if err != nil {
		t.Fatalf("UnblindSignature: %v", err)
	}
	wantC := "0249b34f4bc4921e3c11e8995e34b33b51540a961c55877a10c49c0e7d1fc04ab9"
	if hex.EncodeToString(C.SerializeCompressed()) != wantC {
		t.Fatalf("C = %x, want %s", C.SerializeCompressed(), wantC)
	}

	if !Verify(secretMsg, a, C) {
		t.Fatal("Verify returned false for a valid signature")
	}
}

func TestBDHKEContractHolds(t *testing.T) {
	secretMsg := []byte("arbitrary secret for round trip")

	B_, r, err := BlindMessage(secretMsg, nil)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}

	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	C_, err := SignBlindedMessage(B_, k)
	if err != nil {
		t.Fatalf("SignBlindedMessage: %v", err)
	}

	C, err := UnblindSignature(C_, r, k.PubKey())
	if err != nil {
		t.Fatalf("UnblindSignature: %v", err)
	}

	if !Verify(secretMsg, k, C) {
		t.Fatal("verify failed for a freshly generated (a, r, m) triple")
	}
}
