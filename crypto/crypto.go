// Package crypto implements the TSP message envelope: CESR-framed
// messages encrypted with HPKE-Auth (RFC 9180, DHKEM(X25519,
// HKDF-SHA256) / HKDF-SHA256 / ChaCha20-Poly1305) and signed with a
// detached Ed25519 signature over the full wire bytes. The signature
// covers the receiver identifier and the ciphertext, so a sender cannot
// repudiate a message to a specific receiver; HPKE-Auth binds the
// sender's static encryption key, so a receiver cannot forge messages
// appearing to come from that sender.
package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/hpke"

	"github.com/cvsouth/tsp-go/cesr"
)

const (
	kemID  = hpke.KEM_X25519_HKDF_SHA256
	kdfID  = hpke.KDF_HKDF_SHA256
	aeadID = hpke.AEAD_ChaCha20Poly1305
)

// MessageContents is what opening a confidential message yields. The
// byte fields are views into the buffer passed to Open.
type MessageContents struct {
	NonConfidential []byte
	Payload         cesr.Payload
	// Raw is the decrypted payload plaintext before CESR decoding;
	// relationship thread ids are digests over it.
	Raw           []byte
	CryptoType    cesr.CryptoType
	SignatureType cesr.SignatureType
}

// Seal encrypts, authenticates and signs a payload from sender to
// receiver, returning the complete wire message.
func Seal(sender PrivateVid, receiver VerifiedVid, nonConfidential []byte, payload cesr.Payload) ([]byte, error) {
	return seal(cesr.CryptoHpkeEssr, sender, receiver, nonConfidential, payload, nil)
}

// SealAndHash is Seal, but also returns the SHA-256 digest of the
// plaintext payload and non-confidential data: the thread id used to
// tie relationship replies to proposals.
func SealAndHash(sender PrivateVid, receiver VerifiedVid, nonConfidential []byte, payload cesr.Payload) ([]byte, [32]byte, error) {
	var digest [32]byte
	message, err := seal(cesr.CryptoHpkeEssr, sender, receiver, nonConfidential, payload, func(plaintext []byte) {
		digest = Sha256(plaintext)
	})
	return message, digest, err
}

// SealSuite is Seal with an explicit confidentiality suite.
func SealSuite(suite cesr.CryptoType, sender PrivateVid, receiver VerifiedVid, nonConfidential []byte, payload cesr.Payload) ([]byte, error) {
	return seal(suite, sender, receiver, nonConfidential, payload, nil)
}

func seal(suite cesr.CryptoType, sender PrivateVid, receiver VerifiedVid, nonConfidential []byte, payload cesr.Payload, observe func([]byte)) ([]byte, error) {
	header, err := cesr.EncodeEnvelope(nil, cesr.Envelope{
		CryptoType:      suite,
		SignatureType:   cesr.SignatureEd25519,
		Sender:          []byte(sender.Identifier()),
		Receiver:        []byte(receiver.Identifier()),
		NonConfidential: nonConfidential,
	})
	if err != nil {
		return nil, err
	}

	plaintext, err := cesr.EncodePayload(nil, payload)
	if err != nil {
		return nil, err
	}
	if observe != nil {
		observe(append(append([]byte(nil), plaintext...), nonConfidential...))
	}

	var ciphertext []byte
	switch suite {
	case cesr.CryptoHpkeEssr:
		ciphertext, err = hpkeSeal(sender, receiver, header, plaintext)
	case cesr.CryptoNaclEssr:
		ciphertext, err = naclSeal(sender, receiver, header, plaintext)
	default:
		err = ErrUnsupportedSuite
	}
	if err != nil {
		return nil, err
	}

	message, err := cesr.EncodeCiphertext(header, ciphertext)
	if err != nil {
		return nil, err
	}
	signature := signDetached(sender.SigningKey(), message)
	return cesr.EncodeSignature(message, signature), nil
}

// Open verifies and decrypts a confidential message in place. The
// returned views borrow the message buffer.
func Open(receiver PrivateVid, sender VerifiedVid, message []byte) (MessageContents, error) {
	var contents MessageContents

	view, err := cesr.DecodeEnvelope(message)
	if err != nil {
		return contents, err
	}
	if string(view.Envelope.Sender) != sender.Identifier() {
		return contents, ErrUnexpectedSender
	}
	if view.Envelope.Receiver != nil && string(view.Envelope.Receiver) != receiver.Identifier() {
		return contents, ErrUnexpectedRecipient
	}

	if !verifyStrict(sender.VerifyingKey(), view.SignedData(), view.Signature) {
		return contents, ErrVerify
	}

	if view.Ciphertext == nil {
		return contents, ErrMissingCiphertext
	}

	var plaintext []byte
	switch view.Envelope.CryptoType {
	case cesr.CryptoHpkeEssr:
		plaintext, err = hpkeOpen(receiver, sender, view)
	case cesr.CryptoNaclEssr:
		plaintext, err = naclOpen(receiver, sender, view)
	default:
		err = ErrUnsupportedSuite
	}
	if err != nil {
		return contents, err
	}

	payload, err := cesr.DecodePayload(plaintext)
	if err != nil {
		return contents, err
	}

	contents.NonConfidential = view.Envelope.NonConfidential
	contents.Payload = payload
	contents.Raw = plaintext
	contents.CryptoType = view.Envelope.CryptoType
	contents.SignatureType = view.Envelope.SignatureType
	return contents, nil
}

// hpkeSeal encrypts plaintext under HPKE-Auth with the envelope header
// as both info and AAD. The wire ciphertext is enc || ct.
func hpkeSeal(sender PrivateVid, receiver VerifiedVid, header, plaintext []byte) ([]byte, error) {
	scheme := kemID.Scheme()

	pkR, err := scheme.UnmarshalBinaryPublicKey(receiver.EncryptionKey()[:])
	if err != nil {
		return nil, fmt.Errorf("%w: receiver key: %v", ErrHpke, err)
	}
	skS, err := scheme.UnmarshalBinaryPrivateKey(sender.DecryptionKey()[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrHpke, err)
	}

	suite := hpke.NewSuite(kemID, kdfID, aeadID)
	hpkeSender, err := suite.NewSender(pkR, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHpke, err)
	}
	enc, sealer, err := hpkeSender.SetupAuth(rand.Reader, skS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHpke, err)
	}
	ct, err := sealer.Seal(plaintext, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHpke, err)
	}
	return append(enc, ct...), nil
}

// hpkeOpen reverses hpkeSeal, decrypting into the ciphertext's own
// buffer so the returned plaintext borrows the wire bytes.
func hpkeOpen(receiver PrivateVid, sender VerifiedVid, view *cesr.EnvelopeView) ([]byte, error) {
	scheme := kemID.Scheme()

	encSize := scheme.CiphertextSize()
	if len(view.Ciphertext) < encSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrHpke)
	}
	enc, ct := view.Ciphertext[:encSize], view.Ciphertext[encSize:]

	skR, err := scheme.UnmarshalBinaryPrivateKey(receiver.DecryptionKey()[:])
	if err != nil {
		return nil, fmt.Errorf("%w: receiver key: %v", ErrHpke, err)
	}
	pkS, err := scheme.UnmarshalBinaryPublicKey(sender.EncryptionKey()[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrHpke, err)
	}

	suite := hpke.NewSuite(kemID, kdfID, aeadID)
	hpkeReceiver, err := suite.NewReceiver(skR, view.Header())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHpke, err)
	}
	opener, err := hpkeReceiver.SetupAuth(enc, pkS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHpke, err)
	}
	plaintext, err := opener.Open(ct, view.Header())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHpke, err)
	}

	// Ciphertext length exceeds plaintext length, so the decrypted
	// bytes fit in place.
	n := copy(view.Ciphertext, plaintext)
	return view.Ciphertext[:n], nil
}
