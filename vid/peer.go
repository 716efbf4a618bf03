package vid

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/cvsouth/tsp-go/crypto"
)

// did:peer identifiers are self-certifying: the keys and the transport
// travel inside the identifier itself, so verification is purely local.
// The numalgo-2 form is used, one element per key plus a service
// element:
//
//	did:peer:2.Vz<mb-sigkey>.Ez<mb-enckey>.S<b64url-service>
//
// where mb- is multibase base58btc over a multicodec-prefixed key.

var (
	multicodecEd25519 = []byte{0xed, 0x01}
	multicodecX25519  = []byte{0xec, 0x01}
)

type peerService struct {
	Type            string `json:"t"`
	ServiceEndpoint string `json:"s"`
}

// NewPeer generates fresh keypairs and derives the matching did:peer
// identifier for the given transport.
func NewPeer(transport *url.URL) (*OwnedVid, error) {
	sigPriv, sigPub, err := crypto.GenerateSignKeypair()
	if err != nil {
		return nil, err
	}
	encPriv, encPub, err := crypto.GenerateEncryptKeypair()
	if err != nil {
		return nil, err
	}

	id := EncodePeer(&sigPub, &encPub, transport)
	vid, err := New(id, transport, sigPub, encPub)
	if err != nil {
		return nil, err
	}
	return &OwnedVid{Vid: *vid, sigkey: sigPriv, enckey: encPriv}, nil
}

// EncodePeer builds the did:peer identifier committing to the given
// keys and transport.
func EncodePeer(publicSigkey, publicEnckey *[32]byte, transport *url.URL) string {
	service, _ := json.Marshal(peerService{
		Type:            "tsp",
		ServiceEndpoint: transport.String(),
	})

	var b strings.Builder
	b.WriteString("did:peer:2")
	b.WriteString(".Vz")
	b.WriteString(base58.Encode(append(append([]byte(nil), multicodecEd25519...), publicSigkey[:]...)))
	b.WriteString(".Ez")
	b.WriteString(base58.Encode(append(append([]byte(nil), multicodecX25519...), publicEnckey[:]...)))
	b.WriteString(".S")
	b.WriteString(base64.RawURLEncoding.EncodeToString(service))
	return b.String()
}

// VerifyPeer verifies a did:peer identifier offline and returns the
// Vid it commits to.
func VerifyPeer(id string) (*Vid, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != "did" || parts[1] != "peer" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVid, id)
	}

	elements := strings.Split(parts[2], ".")
	if len(elements) == 0 || elements[0] != "2" {
		return nil, fmt.Errorf("%w: unsupported did:peer numalgo in %q", ErrInvalidVid, id)
	}

	var sigkey, enckey *[32]byte
	var transport *url.URL
	for _, element := range elements[1:] {
		if len(element) < 2 {
			return nil, fmt.Errorf("%w: short element in %q", ErrInvalidVid, id)
		}
		switch element[0] {
		case 'V':
			key, err := decodeMultibaseKey(element[1:], multicodecEd25519)
			if err != nil {
				return nil, fmt.Errorf("%w: verification key in %q: %v", ErrInvalidVid, id, err)
			}
			sigkey = key
		case 'E':
			key, err := decodeMultibaseKey(element[1:], multicodecX25519)
			if err != nil {
				return nil, fmt.Errorf("%w: encryption key in %q: %v", ErrInvalidVid, id, err)
			}
			enckey = key
		case 'S':
			raw, err := base64.RawURLEncoding.DecodeString(element[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: service element in %q: %v", ErrInvalidVid, id, err)
			}
			var service peerService
			if err := json.Unmarshal(raw, &service); err != nil {
				return nil, fmt.Errorf("%w: service element in %q: %v", ErrInvalidVid, id, err)
			}
			if transport, err = url.Parse(service.ServiceEndpoint); err != nil {
				return nil, fmt.Errorf("%w: service endpoint in %q: %v", ErrInvalidVid, id, err)
			}
		}
	}

	if sigkey == nil || enckey == nil || transport == nil {
		return nil, fmt.Errorf("%w: incomplete did:peer %q", ErrInvalidVid, id)
	}
	return New(id, transport, *sigkey, *enckey)
}

func decodeMultibaseKey(encoded string, codec []byte) (*[32]byte, error) {
	if len(encoded) == 0 || encoded[0] != 'z' {
		return nil, fmt.Errorf("not base58btc multibase")
	}
	raw, err := base58.Decode(encoded[1:])
	if err != nil {
		return nil, err
	}
	if len(raw) != len(codec)+32 {
		return nil, fmt.Errorf("key length %d", len(raw))
	}
	for i, b := range codec {
		if raw[i] != b {
			return nil, fmt.Errorf("wrong multicodec prefix")
		}
	}
	var key [32]byte
	copy(key[:], raw[len(codec):])
	return &key, nil
}
