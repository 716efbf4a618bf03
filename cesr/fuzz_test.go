package cesr

import (
	"bytes"
	"testing"
)

func FuzzDecodePayload(f *testing.F) {
	// Seeds: one encoding of every payload variant.
	seeds := []Payload{
		GenericMessage("hello world"),
		NestedMessage("inner"),
		RoutedMessage{Hops: [][]byte{[]byte("did:test:bob")}, Message: []byte("x")},
		DirectRelationProposal{Nonce: [32]byte{1}},
		DirectRelationAffirm{Reply: [32]byte{2}},
		NestedRelationProposal{NewVid: []byte("did:peer:a")},
		NestedRelationAffirm{Reply: [32]byte{3}, NewVid: []byte("did:peer:b"), ConnectToVid: []byte("did:peer:a")},
		RelationshipCancel{Nonce: [32]byte{4}, Reply: [32]byte{5}},
	}
	for _, p := range seeds {
		encoded, err := EncodePayload(nil, p)
		if err != nil {
			f.Fatalf("seed encode: %v", err)
		}
		f.Add(encoded)
	}
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		// Must not panic. Anything that decodes must re-encode and
		// decode to the same value.
		payload, err := DecodePayload(data)
		if err != nil {
			return
		}
		reencoded, err := EncodePayload(nil, payload)
		if err != nil {
			t.Fatalf("decoded payload failed to encode: %v", err)
		}
		again, err := DecodePayload(reencoded)
		if err != nil {
			t.Fatalf("re-encoded payload failed to decode: %v", err)
		}
		if !payloadEqual(payload, again) {
			t.Fatalf("payload not stable under re-encoding:\n got %#v\nwant %#v", again, payload)
		}
	})
}

func FuzzDecodeEnvelope(f *testing.F) {
	valid, err := EncodeEnvelope(nil, Envelope{
		CryptoType:      CryptoHpkeEssr,
		SignatureType:   SignatureEd25519,
		Sender:          []byte("did:test:alice"),
		Receiver:        []byte("did:test:bob"),
		NonConfidential: []byte("nc"),
	})
	if err != nil {
		f.Fatalf("seed encode: %v", err)
	}
	valid, err = EncodeCiphertext(valid, bytes.Repeat([]byte{0xaa}, 48))
	if err != nil {
		f.Fatalf("seed ciphertext: %v", err)
	}
	valid = EncodeSignature(valid, make([]byte, 64))
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte{0xfb})

	f.Fuzz(func(t *testing.T, data []byte) {
		view, err := DecodeEnvelope(data)
		if err != nil {
			return
		}
		if len(view.Envelope.Sender) == 0 {
			t.Fatal("decoded envelope with empty sender")
		}
		// Anything that decodes must re-encode and decode to the same
		// fields.
		reencoded, err := EncodeEnvelope(nil, view.Envelope)
		if err != nil {
			t.Fatalf("decoded envelope failed to encode: %v", err)
		}
		if view.Ciphertext != nil {
			if reencoded, err = EncodeCiphertext(reencoded, view.Ciphertext); err != nil {
				t.Fatalf("decoded ciphertext failed to encode: %v", err)
			}
		}
		reencoded = EncodeSignature(reencoded, view.Signature)
		again, err := DecodeEnvelope(reencoded)
		if err != nil {
			t.Fatalf("re-encoded envelope failed to decode: %v", err)
		}
		if !bytes.Equal(again.Envelope.Sender, view.Envelope.Sender) ||
			!bytes.Equal(again.Envelope.Receiver, view.Envelope.Receiver) ||
			!bytes.Equal(again.Envelope.NonConfidential, view.Envelope.NonConfidential) ||
			!bytes.Equal(again.Ciphertext, view.Ciphertext) ||
			!bytes.Equal(again.Signature, view.Signature) {
			t.Fatal("envelope not stable under re-encoding")
		}
	})
}

func FuzzToBinary(f *testing.F) {
	f.Add([]byte("-FAB"))
	f.Add([]byte{0xfb, 0xe4, 0xd2})
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		ToBinary(append([]byte(nil), data...))
	})
}
