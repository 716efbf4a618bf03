package crypto

import "github.com/cvsouth/tsp-go/cesr"

// Sign constructs a non-confidential TSP message: the payload travels
// in the clear but is covered by the detached signature. A nil receiver
// produces a broadcast message.
func Sign(sender PrivateVid, receiver VerifiedVid, payload []byte) ([]byte, error) {
	env := cesr.Envelope{
		CryptoType:      cesr.CryptoPlaintext,
		SignatureType:   cesr.SignatureEd25519,
		Sender:          []byte(sender.Identifier()),
		NonConfidential: payload,
	}
	if receiver != nil {
		env.Receiver = []byte(receiver.Identifier())
	}

	message, err := cesr.EncodeEnvelope(nil, env)
	if err != nil {
		return nil, err
	}
	signature := signDetached(sender.SigningKey(), message)
	return cesr.EncodeSignature(message, signature), nil
}

// Verify checks a non-confidential message against the purported
// sender and returns a view of its payload.
func Verify(sender VerifiedVid, message []byte) ([]byte, error) {
	view, err := cesr.DecodeEnvelope(message)
	if err != nil {
		return nil, err
	}
	if string(view.Envelope.Sender) != sender.Identifier() {
		return nil, ErrUnexpectedSender
	}
	if !verifyStrict(sender.VerifyingKey(), view.SignedData(), view.Signature) {
		return nil, ErrVerify
	}
	if view.Envelope.CryptoType != cesr.CryptoPlaintext {
		return nil, ErrUnsupportedSuite
	}
	return view.Envelope.NonConfidential, nil
}
