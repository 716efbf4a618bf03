// Package vid implements Verified Identifiers: strings that name a
// party and cryptographically commit to its Ed25519 verifying key and
// X25519 encryption key, together with the transport URL the party
// receives messages on.
package vid

import (
	"fmt"
	"net/url"

	"github.com/cvsouth/tsp-go/crypto"
)

// Vid is a verified identifier: public material only.
type Vid struct {
	id           string
	transport    *url.URL
	publicSigkey [32]byte
	publicEnckey [32]byte
}

// OwnedVid is a Vid this endpoint controls: it carries the private
// half of both keys.
type OwnedVid struct {
	Vid
	sigkey [32]byte
	enckey [32]byte
}

// New assembles a Vid from its parts, validating the identifier and
// transport.
func New(id string, transport *url.URL, publicSigkey, publicEnckey [32]byte) (*Vid, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	if transport == nil || !TransportScheme(transport.Scheme) {
		return nil, fmt.Errorf("%w: %q", ErrBadTransport, transport)
	}
	return &Vid{
		id:           id,
		transport:    transport,
		publicSigkey: publicSigkey,
		publicEnckey: publicEnckey,
	}, nil
}

// Bind creates an OwnedVid for the given identifier and transport with
// freshly generated keypairs.
func Bind(id string, transport *url.URL) (*OwnedVid, error) {
	sigPriv, sigPub, err := crypto.GenerateSignKeypair()
	if err != nil {
		return nil, err
	}
	encPriv, encPub, err := crypto.GenerateEncryptKeypair()
	if err != nil {
		return nil, err
	}

	vid, err := New(id, transport, sigPub, encPub)
	if err != nil {
		return nil, err
	}
	return &OwnedVid{Vid: *vid, sigkey: sigPriv, enckey: encPriv}, nil
}

// TransportScheme reports whether scheme is one TSP messages can be
// sent or received over.
func TransportScheme(scheme string) bool {
	switch scheme {
	case "tcp", "tls", "quic", "http", "https", "ws", "wss":
		return true
	}
	return false
}

// Identifier returns the identifier string.
func (v *Vid) Identifier() string { return v.id }

// Endpoint returns the transport URL.
func (v *Vid) Endpoint() *url.URL { return v.transport }

// VerifyingKey returns the public Ed25519 key.
func (v *Vid) VerifyingKey() *[32]byte { return &v.publicSigkey }

// EncryptionKey returns the public X25519 key.
func (v *Vid) EncryptionKey() *[32]byte { return &v.publicEnckey }

func (v *Vid) String() string {
	return v.id
}

// SigningKey returns the private Ed25519 seed.
func (v *OwnedVid) SigningKey() *[32]byte { return &v.sigkey }

// DecryptionKey returns the private X25519 key.
func (v *OwnedVid) DecryptionKey() *[32]byte { return &v.enckey }

// Verified returns the public part of this identifier.
func (v *OwnedVid) Verified() *Vid {
	vid := v.Vid
	return &vid
}

// String redacts the private material: only the identifier appears in
// diagnostics.
func (v *OwnedVid) String() string {
	return v.id
}

// GoString keeps %#v output free of key material.
func (v *OwnedVid) GoString() string {
	return fmt.Sprintf("vid.OwnedVid{id: %q, sigkey: <secret>, enckey: <secret>}", v.id)
}
