package cesr

import (
	"bytes"
	"testing"
)

func encodeTestMessage(t *testing.T, env Envelope, ciphertext, signature []byte) []byte {
	t.Helper()
	data, err := EncodeEnvelope(nil, env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	if ciphertext != nil {
		if data, err = EncodeCiphertext(data, ciphertext); err != nil {
			t.Fatalf("EncodeCiphertext: %v", err)
		}
	}
	return EncodeSignature(data, signature)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		CryptoType:      CryptoHpkeEssr,
		SignatureType:   SignatureEd25519,
		Sender:          []byte("did:test:alice"),
		Receiver:        []byte("did:test:bob"),
		NonConfidential: []byte("extra header data"),
	}
	ciphertext := bytes.Repeat([]byte{0xcc}, 80)
	signature := bytes.Repeat([]byte{0x55}, 64)

	wire := encodeTestMessage(t, env, ciphertext, signature)
	if len(wire)%3 != 0 {
		t.Fatalf("message length %d is not a multiple of 3", len(wire))
	}

	view, err := DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}

	if view.Envelope.CryptoType != env.CryptoType || view.Envelope.SignatureType != env.SignatureType {
		t.Fatal("suite tag mismatch")
	}
	if !bytes.Equal(view.Envelope.Sender, env.Sender) {
		t.Fatal("sender mismatch")
	}
	if !bytes.Equal(view.Envelope.Receiver, env.Receiver) {
		t.Fatal("receiver mismatch")
	}
	if !bytes.Equal(view.Envelope.NonConfidential, env.NonConfidential) {
		t.Fatal("non-confidential data mismatch")
	}
	if !bytes.Equal(view.Ciphertext, ciphertext) {
		t.Fatal("ciphertext mismatch")
	}
	if !bytes.Equal(view.Signature, signature) {
		t.Fatal("signature mismatch")
	}

	// The signed region must cover everything up to the signature
	// frame, ciphertext included.
	wantSigned := len(wire) - 66 // 64-byte signature + 2 lead bytes
	if len(view.SignedData()) != wantSigned {
		t.Fatalf("signed region is %d bytes, want %d", len(view.SignedData()), wantSigned)
	}
}

func TestEnvelopeWithoutReceiver(t *testing.T) {
	env := Envelope{
		CryptoType:      CryptoPlaintext,
		SignatureType:   SignatureEd25519,
		Sender:          []byte("did:test:alice"),
		NonConfidential: []byte("broadcast announcement"),
	}
	wire := encodeTestMessage(t, env, nil, make([]byte, 64))

	view, err := DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if view.Envelope.Receiver != nil {
		t.Fatalf("got receiver %q, want none", view.Envelope.Receiver)
	}
	if view.Ciphertext != nil {
		t.Fatal("plaintext message decoded a ciphertext")
	}
	if !bytes.Equal(view.Envelope.NonConfidential, env.NonConfidential) {
		t.Fatal("non-confidential data mismatch")
	}
}

func TestEnvelopeCiphertextIsView(t *testing.T) {
	env := Envelope{
		CryptoType:    CryptoHpkeEssr,
		SignatureType: SignatureEd25519,
		Sender:        []byte("did:test:alice"),
		Receiver:      []byte("did:test:bob"),
	}
	wire := encodeTestMessage(t, env, []byte("in place decryptable"), make([]byte, 64))

	view, err := DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}

	// In-place decryption relies on the ciphertext aliasing the wire
	// buffer.
	view.Ciphertext[0] ^= 0xff
	again, err := DecodeEnvelope(wire)
	if err != nil {
		t.Fatalf("DecodeEnvelope after mutation: %v", err)
	}
	if bytes.Equal(view.Ciphertext, again.Ciphertext) == false {
		t.Fatal("ciphertext does not alias the message buffer")
	}
}

func TestEnvelopeVersionMismatch(t *testing.T) {
	saved := ProtocolVersion
	ProtocolVersion = Version{9, 9, 9}
	wire := encodeTestMessage(t, Envelope{
		CryptoType:    CryptoPlaintext,
		SignatureType: SignatureEd25519,
		Sender:        []byte("did:test:alice"),
	}, nil, make([]byte, 64))
	ProtocolVersion = saved

	if _, err := DecodeEnvelope(wire); err != ErrVersionMismatch {
		t.Fatalf("got %v, want ErrVersionMismatch", err)
	}
}

func TestEnvelopeTrailingGarbage(t *testing.T) {
	wire := encodeTestMessage(t, Envelope{
		CryptoType:    CryptoPlaintext,
		SignatureType: SignatureEd25519,
		Sender:        []byte("did:test:alice"),
	}, nil, make([]byte, 64))
	wire = append(wire, 1, 2, 3)

	if _, err := DecodeEnvelope(wire); err != ErrTrailingGarbage {
		t.Fatalf("got %v, want ErrTrailingGarbage", err)
	}
}

func TestEnvelopeUnknownSuite(t *testing.T) {
	data := appendGenus(nil, genusTSP, ProtocolVersion)
	data = appendFixed(data, idSuite, []byte{0x20, 0x00})
	data, err := appendVariable(data, idVid, []byte("did:test:alice"))
	if err != nil {
		t.Fatalf("appendVariable: %v", err)
	}
	data = appendFixed(data, idSignature, make([]byte, 64))

	if _, err := DecodeEnvelope(data); err != ErrUnexpectedMsgType {
		t.Fatalf("got %v, want ErrUnexpectedMsgType", err)
	}
}
