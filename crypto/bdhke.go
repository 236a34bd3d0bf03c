// Package crypto implements the blinded Diffie-Hellman key exchange (BDHKE)
// primitive that the mint and wallet use to issue and redeem ecash, along
// with the deterministic keyset derivation built on top of it.
package crypto

import (
	"crypto/sha256"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrInvalidScalar is returned whenever a 32-byte value does not represent
// a valid secp256k1 scalar or public key for the operation being performed.
var ErrInvalidScalar = errors.New("crypto: invalid secp256k1 scalar or point")

// HashToCurve maps an arbitrary message onto a point of the secp256k1 curve.
// It repeatedly hashes the message and tries to parse `0x02 || hash` as a
// compressed point, using the point decoder itself as a rejection-sampling
// oracle. Termination probability is ~1/2 per iteration.
func HashToCurve(message []byte) *secp256k1.PublicKey {
	var point *secp256k1.PublicKey

	for point == nil {
		hash := sha256.Sum256(message)
		candidate := append([]byte{0x02}, hash[:]...)
		point, _ = secp256k1.ParsePubKey(candidate)
		message = hash[:]
	}
	return point
}

// BlindMessage computes B_ = Y + rG where Y = hash_to_curve(secret).
// If blindingFactor is nil, a fresh random scalar is generated.
func BlindMessage(secret []byte, blindingFactor []byte) (*secp256k1.PublicKey, *secp256k1.PrivateKey, error) {
	var r *secp256k1.PrivateKey
	if blindingFactor == nil {
		var err error
		r, err = secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, err
		}
	} else {
		r = secp256k1.PrivKeyFromBytes(blindingFactor)
	}

	var yPoint, rPoint, blinded secp256k1.JacobianPoint
	Y := HashToCurve(secret)
	Y.AsJacobian(&yPoint)

	rPub := r.PubKey()
	rPub.AsJacobian(&rPoint)

	secp256k1.AddNonConst(&yPoint, &rPoint, &blinded)
	blinded.ToAffine()
	B_ := secp256k1.NewPublicKey(&blinded.X, &blinded.Y)

	return B_, r, nil
}

// SignBlindedMessage computes C_ = k*B_, the mint's blind signature over
// the wallet's commitment, for the amount key k.
func SignBlindedMessage(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) (*secp256k1.PublicKey, error) {
	if B_ == nil || k == nil {
		return nil, ErrInvalidScalar
	}

	var bPoint, result secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&k.Key, &bPoint, &result)
	result.ToAffine()

	return secp256k1.NewPublicKey(&result.X, &result.Y), nil
}

// UnblindSignature computes C = C_ - rK, recovering the unblinded signature
// the wallet keeps as a Proof's C value.
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey, K *secp256k1.PublicKey) (*secp256k1.PublicKey, error) {
	if C_ == nil || r == nil || K == nil {
		return nil, ErrInvalidScalar
	}

	var kPoint, rKPoint, cPoint, result secp256k1.JacobianPoint
	K.AsJacobian(&kPoint)

	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)
	secp256k1.ScalarMultNonConst(&rNeg, &kPoint, &rKPoint)

	C_.AsJacobian(&cPoint)
	secp256k1.AddNonConst(&cPoint, &rKPoint, &result)
	result.ToAffine()

	return secp256k1.NewPublicKey(&result.X, &result.Y), nil
}

// Verify checks that C == k*hash_to_curve(secret), i.e. that C is a valid
// signature on secret under the amount-specific private key k.
func Verify(secret []byte, k *secp256k1.PrivateKey, C *secp256k1.PublicKey) bool {
	if k == nil || C == nil {
		return false
	}

	var yPoint, result secp256k1.JacobianPoint
	Y := HashToCurve(secret)
	Y.AsJacobian(&yPoint)

	secp256k1.ScalarMultNonConst(&k.Key, &yPoint, &result)
	result.ToAffine()
	candidate := secp256k1.NewPublicKey(&result.X, &result.Y)

	return C.IsEqual(candidate)
}
