package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/blake2b"
)

// Sha256 returns the SHA2-256 digest of content.
func Sha256(content []byte) [32]byte {
	return sha256.Sum256(content)
}

// Blake2b256 returns the BLAKE2b-256 digest of content. Used by the
// NaCl suite variant to bind the envelope header into the ciphertext.
func Blake2b256(content []byte) [32]byte {
	return blake2b.Sum256(content)
}
