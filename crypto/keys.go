package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// VerifiedVid is the capability set seal and verify need from a peer:
// an identifier that commits to a verifying key and an encryption key.
type VerifiedVid interface {
	Identifier() string
	VerifyingKey() *[32]byte
	EncryptionKey() *[32]byte
}

// PrivateVid extends VerifiedVid with the private half of both keys.
type PrivateVid interface {
	VerifiedVid
	SigningKey() *[32]byte
	DecryptionKey() *[32]byte
}

// GenerateSignKeypair generates a fresh Ed25519 keypair, returning the
// 32-byte private seed and the verifying key.
func GenerateSignKeypair() (private, public [32]byte, err error) {
	if _, err = rand.Read(private[:]); err != nil {
		return private, public, fmt.Errorf("generate signing key: %w", err)
	}
	copy(public[:], signPublic(&private))
	return private, public, nil
}

// GenerateEncryptKeypair generates a fresh X25519 keypair.
func GenerateEncryptKeypair() (private, public [32]byte, err error) {
	if _, err = rand.Read(private[:]); err != nil {
		return private, public, fmt.Errorf("generate encryption key: %w", err)
	}
	pub, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		return private, public, fmt.Errorf("compute encryption public key: %w", err)
	}
	copy(public[:], pub)
	return private, public, nil
}

// KeysEqual compares two 32-byte keys in constant time.
func KeysEqual(a, b *[32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
