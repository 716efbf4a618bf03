package vid

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// vidJSON is the persisted form of a Vid. All keys are unpadded
// Base64URL; the private fields are present only in private exports.
type vidJSON struct {
	ID           string `json:"id"`
	Transport    string `json:"transport"`
	SigKeyType   string `json:"sigKeyType"`
	PublicSigkey string `json:"publicSigkey"`
	Sigkey       string `json:"sigkey,omitempty"`
	EncKeyType   string `json:"encKeyType"`
	PublicEnckey string `json:"publicEnckey"`
	Enckey       string `json:"enckey,omitempty"`
}

const (
	sigKeyTypeEd25519 = "ed25519"
	encKeyTypeX25519  = "x25519"
)

// MarshalJSON serialises the public form.
func (v *Vid) MarshalJSON() ([]byte, error) {
	return json.Marshal(vidJSON{
		ID:           v.id,
		Transport:    v.transport.String(),
		SigKeyType:   sigKeyTypeEd25519,
		PublicSigkey: base64.RawURLEncoding.EncodeToString(v.publicSigkey[:]),
		EncKeyType:   encKeyTypeX25519,
		PublicEnckey: base64.RawURLEncoding.EncodeToString(v.publicEnckey[:]),
	})
}

// UnmarshalJSON parses the persisted form, public or private; private
// material is ignored here (use OwnedVid for that).
func (v *Vid) UnmarshalJSON(data []byte) error {
	var raw vidJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := vidFromJSON(raw)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// MarshalJSON serialises the private form, secrets included. This is
// the only formatter that emits key material; it exists for explicit
// persistence, never for diagnostics.
func (v *OwnedVid) MarshalJSON() ([]byte, error) {
	return json.Marshal(vidJSON{
		ID:           v.id,
		Transport:    v.transport.String(),
		SigKeyType:   sigKeyTypeEd25519,
		PublicSigkey: base64.RawURLEncoding.EncodeToString(v.publicSigkey[:]),
		Sigkey:       base64.RawURLEncoding.EncodeToString(v.sigkey[:]),
		EncKeyType:   encKeyTypeX25519,
		PublicEnckey: base64.RawURLEncoding.EncodeToString(v.publicEnckey[:]),
		Enckey:       base64.RawURLEncoding.EncodeToString(v.enckey[:]),
	})
}

// UnmarshalJSON parses a private export.
func (v *OwnedVid) UnmarshalJSON(data []byte) error {
	var raw vidJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Sigkey == "" || raw.Enckey == "" {
		return fmt.Errorf("%w: export lacks private key material", ErrInvalidVid)
	}

	parsed, err := vidFromJSON(raw)
	if err != nil {
		return err
	}
	sigkey, err := decodeKey(raw.Sigkey)
	if err != nil {
		return fmt.Errorf("sigkey: %w", err)
	}
	enckey, err := decodeKey(raw.Enckey)
	if err != nil {
		return fmt.Errorf("enckey: %w", err)
	}

	*v = OwnedVid{Vid: *parsed, sigkey: sigkey, enckey: enckey}
	return nil
}

// FromFile loads a private VID from a JSON file.
func FromFile(path string) (*OwnedVid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private vid: %w", err)
	}
	var v OwnedVid
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse private vid: %w", err)
	}
	return &v, nil
}

func vidFromJSON(raw vidJSON) (*Vid, error) {
	if raw.SigKeyType != "" && raw.SigKeyType != sigKeyTypeEd25519 {
		return nil, fmt.Errorf("%w: signature key type %q", ErrInvalidVid, raw.SigKeyType)
	}
	if raw.EncKeyType != "" && raw.EncKeyType != encKeyTypeX25519 {
		return nil, fmt.Errorf("%w: encryption key type %q", ErrInvalidVid, raw.EncKeyType)
	}

	transport, err := url.Parse(raw.Transport)
	if err != nil {
		return nil, fmt.Errorf("%w: transport: %v", ErrBadTransport, err)
	}
	publicSigkey, err := decodeKey(raw.PublicSigkey)
	if err != nil {
		return nil, fmt.Errorf("publicSigkey: %w", err)
	}
	publicEnckey, err := decodeKey(raw.PublicEnckey)
	if err != nil {
		return nil, fmt.Errorf("publicEnckey: %w", err)
	}
	return New(raw.ID, transport, publicSigkey, publicEnckey)
}

func decodeKey(encoded string) ([32]byte, error) {
	var key [32]byte
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return key, err
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("key data is %d bytes, not 32", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
