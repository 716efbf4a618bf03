package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/cvsouth/tsp-go/cesr"
)

// The NaCl suite replaces HPKE-Auth with crypto_box, which has no AAD
// input. The envelope header is bound by prefixing its BLAKE2b-256
// digest to the plaintext; open verifies and strips it. The wire
// ciphertext is nonce(24) || box.

const naclDigestLen = 32

func naclSeal(sender PrivateVid, receiver VerifiedVid, header, plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	bound := make([]byte, 0, naclDigestLen+len(plaintext))
	digest := Blake2b256(header)
	bound = append(bound, digest[:]...)
	bound = append(bound, plaintext...)

	out := box.Seal(nonce[:], bound, &nonce, receiver.EncryptionKey(), sender.DecryptionKey())
	return out, nil
}

func naclOpen(receiver PrivateVid, sender VerifiedVid, view *cesr.EnvelopeView) ([]byte, error) {
	ciphertext := view.Ciphertext
	if len(ciphertext) < 24+box.Overhead+naclDigestLen {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrHpke)
	}

	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])

	bound, ok := box.Open(nil, ciphertext[24:], &nonce, sender.EncryptionKey(), receiver.DecryptionKey())
	if !ok {
		return nil, fmt.Errorf("%w: box open failed", ErrHpke)
	}

	digest := Blake2b256(view.Header())
	if subtle.ConstantTimeCompare(bound[:naclDigestLen], digest[:]) != 1 {
		return nil, fmt.Errorf("%w: header binding mismatch", ErrHpke)
	}

	n := copy(view.Ciphertext, bound[naclDigestLen:])
	return view.Ciphertext[:n], nil
}
