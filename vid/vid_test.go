package vid

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"testing"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return u
}

func TestBindInvariants(t *testing.T) {
	transport := mustURL(t, "tcp://127.0.0.1:1337")

	alice, err := Bind("did:test:alice", transport)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if alice.Identifier() != "did:test:alice" {
		t.Fatalf("identifier %q", alice.Identifier())
	}
	if alice.Endpoint().String() != "tcp://127.0.0.1:1337" {
		t.Fatalf("endpoint %q", alice.Endpoint())
	}
	if *alice.VerifyingKey() == [32]byte{} || *alice.EncryptionKey() == [32]byte{} {
		t.Fatal("bind produced zero public keys")
	}

	if _, err := Bind("", transport); err != ErrEmptyID {
		t.Fatalf("empty id: got %v", err)
	}
	if _, err := Bind("did:test:x", mustURL(t, "gopher://old.school")); err == nil {
		t.Fatal("unrecognised transport scheme accepted")
	}
}

func TestBindFreshKeys(t *testing.T) {
	transport := mustURL(t, "tcp://127.0.0.1:1337")
	a, err := Bind("did:test:a", transport)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	b, err := Bind("did:test:b", transport)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if *a.VerifyingKey() == *b.VerifyingKey() || *a.EncryptionKey() == *b.EncryptionKey() {
		t.Fatal("two binds produced identical keys")
	}
}

func TestPeerRoundTrip(t *testing.T) {
	transport := mustURL(t, "tcp://127.0.0.1:1337")
	owned, err := NewPeer(transport)
	if err != nil {
		t.Fatalf("new peer: %v", err)
	}

	id := owned.Identifier()
	if !strings.HasPrefix(id, "did:peer:2.") {
		t.Fatalf("unexpected did:peer form %q", id)
	}

	verified, err := VerifyPeer(id)
	if err != nil {
		t.Fatalf("verify peer: %v", err)
	}
	if verified.Identifier() != id {
		t.Fatal("identifier changed through verification")
	}
	if *verified.VerifyingKey() != *owned.VerifyingKey() {
		t.Fatal("verifying key mismatch")
	}
	if *verified.EncryptionKey() != *owned.EncryptionKey() {
		t.Fatal("encryption key mismatch")
	}
	if verified.Endpoint().String() != transport.String() {
		t.Fatalf("endpoint %q, want %q", verified.Endpoint(), transport)
	}
}

func TestVerifyPeerRejectsTampering(t *testing.T) {
	owned, err := NewPeer(mustURL(t, "tcp://127.0.0.1:1337"))
	if err != nil {
		t.Fatalf("new peer: %v", err)
	}
	id := owned.Identifier()

	cases := []string{
		"did:peer:1" + strings.TrimPrefix(id, "did:peer:2"), // wrong numalgo
		"did:peer:2",                         // no elements
		"did:web:example.com",                // wrong method for VerifyPeer
		strings.Replace(id, ".Vz", ".VQ", 1), // not multibase z
		id[:len(id)-4],                       // truncated service
	}
	for _, c := range cases {
		if _, err := VerifyPeer(c); err == nil {
			t.Fatalf("VerifyPeer accepted %q", c)
		}
	}
}

func TestVerifyDispatch(t *testing.T) {
	owned, err := NewPeer(mustURL(t, "tcp://127.0.0.1:1337"))
	if err != nil {
		t.Fatalf("new peer: %v", err)
	}
	if _, err := VerifyOffline(owned.Identifier()); err != nil {
		t.Fatalf("offline verify of did:peer: %v", err)
	}
	if _, err := VerifyOffline("did:web:example.com:endpoint:alice"); err == nil {
		t.Fatal("did:web verified without a resolver")
	}
	if _, err := VerifyOffline("not-a-did"); err == nil {
		t.Fatal("malformed identifier verified")
	}
}

func TestWebURL(t *testing.T) {
	cases := []struct{ id, want string }{
		{"did:web:example.com", "https://example.com/did.json"},
		{"did:web:example.com:alice", "https://example.com/alice/did.json"},
		{"did:web:example.com:user:alice", "https://example.com/user/alice/did.json"},
	}
	for _, tc := range cases {
		got, err := WebURL(tc.id)
		if err != nil {
			t.Fatalf("WebURL(%q): %v", tc.id, err)
		}
		if got != tc.want {
			t.Fatalf("WebURL(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
	if _, err := WebURL("did:peer:2.x"); err == nil {
		t.Fatal("WebURL accepted a did:peer identifier")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	owned, err := Bind("did:test:alice", mustURL(t, "tcp://127.0.0.1:1337"))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	private, err := json.Marshal(owned)
	if err != nil {
		t.Fatalf("marshal private: %v", err)
	}
	var restored OwnedVid
	if err := json.Unmarshal(private, &restored); err != nil {
		t.Fatalf("unmarshal private: %v", err)
	}
	if restored.Identifier() != owned.Identifier() ||
		*restored.SigningKey() != *owned.SigningKey() ||
		*restored.DecryptionKey() != *owned.DecryptionKey() {
		t.Fatal("private round trip lost data")
	}

	public, err := json.Marshal(owned.Verified())
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}
	if strings.Contains(string(public), "\"sigkey\"") || strings.Contains(string(public), "\"enckey\"") {
		t.Fatal("public export contains private fields")
	}
	var restoredPublic Vid
	if err := json.Unmarshal(public, &restoredPublic); err != nil {
		t.Fatalf("unmarshal public: %v", err)
	}
	if *restoredPublic.VerifyingKey() != *owned.VerifyingKey() {
		t.Fatal("public round trip lost the verifying key")
	}

	// A public export must not deserialise as a private VID.
	var private2 OwnedVid
	if err := json.Unmarshal(public, &private2); err == nil {
		t.Fatal("public export deserialised as private")
	}
}

func TestOwnedVidRedaction(t *testing.T) {
	owned, err := Bind("did:test:alice", mustURL(t, "tcp://127.0.0.1:1337"))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	// Deliberately non-zero secrets: any hex or base64 leak would be
	// visible in formatted output.
	for _, formatted := range []string{
		fmt.Sprintf("%v", owned),
		fmt.Sprintf("%s", owned),
		fmt.Sprintf("%#v", owned),
	} {
		if !strings.Contains(formatted, "did:test:alice") {
			t.Fatalf("formatted output lost the identifier: %q", formatted)
		}
		if strings.Contains(formatted, fmt.Sprintf("%x", owned.SigningKey()[:4])) {
			t.Fatalf("formatted output leaks key material: %q", formatted)
		}
	}
}
