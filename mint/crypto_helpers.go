package mint

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/cashunuts/mint/crypto"
)

func decodeHexPoint(s string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return secp256k1.ParsePubKey(b)
}

// signBlinded signs a decoded blinded point under k and returns the
// hex-encoded compressed result, the wire form of a BlindedSignature's C_.
func signBlinded(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) (string, error) {
	C_, err := crypto.SignBlindedMessage(B_, k)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(C_.SerializeCompressed()), nil
}

func verifyProofSignature(secret []byte, k *secp256k1.PrivateKey, C *secp256k1.PublicKey) bool {
	return crypto.Verify(secret, k, C)
}
