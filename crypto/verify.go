package crypto

import (
	"crypto/ed25519"
	"crypto/sha512"

	"filippo.io/edwards25519"
)

// signPublic derives the Ed25519 verifying key from a private seed.
func signPublic(seed *[32]byte) ed25519.PublicKey {
	return ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)
}

// signDetached signs message with the given private seed.
func signDetached(seed *[32]byte, message []byte) []byte {
	return ed25519.Sign(ed25519.NewKeyFromSeed(seed[:]), message)
}

// verifyStrict verifies an Ed25519 signature under stricter rules than
// the stdlib: the scalar half must be canonical (which the stdlib also
// enforces) and neither the public key nor the commitment point may lie
// in the small torsion subgroup. This closes the signature-malleability
// gaps that break the non-repudiation contract.
func verifyStrict(publicKey *[32]byte, message, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}

	A, err := new(edwards25519.Point).SetBytes(publicKey[:])
	if err != nil {
		return false
	}
	R, err := new(edwards25519.Point).SetBytes(sig[:32])
	if err != nil {
		return false
	}
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(sig[32:])
	if err != nil {
		return false
	}

	if isSmallOrder(A) || isSmallOrder(R) {
		return false
	}

	h := sha512.New()
	h.Write(sig[:32])
	h.Write(publicKey[:])
	h.Write(message)
	k, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return false
	}

	// Check [s]B = R + [k]A, i.e. [k](-A) + [s]B == R.
	minusA := new(edwards25519.Point).Negate(A)
	check := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(k, minusA, s)
	return check.Equal(R) == 1
}

func isSmallOrder(p *edwards25519.Point) bool {
	q := new(edwards25519.Point).MultByCofactor(p)
	return q.Equal(edwards25519.NewIdentityPoint()) == 1
}
