package cesr

// Version is the protocol version carried in the TSP genus frame.
type Version struct {
	Major, Minor, Patch uint8
}

// ProtocolVersion is the version this codec emits and accepts.
var ProtocolVersion = Version{0, 0, 2}

// genusTSP is the genus tag "TSP", each character given as its
// Base64URL alphabet position.
var genusTSP = [3]byte{19, 18, 15}

// Frame identifiers, given as Base64URL alphabet positions.
const (
	idNonce       uint32 = 0  // 'A' - fresh nonce, fixed 32 bytes
	idSignature   uint32 = 1  // 'B' - signature, fixed 64 bytes (Ed25519)
	idCiphertext  uint32 = 2  // 'C' - ciphertext, variable
	idDigest      uint32 = 3  // 'D' - reply digest, fixed 32 bytes
	idHops        uint32 = 8  // 'I' - hop list count frame
	idPayloadBody uint32 = 12 // 'M' - payload body, variable
	idNonConf     uint32 = 13 // 'N' - non-confidential data, variable
	idVid         uint32 = 21 // 'V' - verified identifier, variable
	idPayloadType uint32 = 22 // 'W' - payload variant tag, fixed 1 byte
	idSuite       uint32 = 23 // 'X' - crypto/signature suite tag, fixed 2 bytes
)

// CryptoType selects the confidentiality suite of an envelope.
type CryptoType uint8

const (
	CryptoPlaintext CryptoType = iota
	CryptoHpkeEssr
	CryptoNaclEssr
	CryptoHpkePq
)

func (c CryptoType) String() string {
	switch c {
	case CryptoPlaintext:
		return "plaintext"
	case CryptoHpkeEssr:
		return "hpke-essr"
	case CryptoNaclEssr:
		return "nacl-essr"
	case CryptoHpkePq:
		return "hpke-pq"
	}
	return "unknown"
}

// SignatureType selects the signature suite of an envelope.
type SignatureType uint8

const (
	SignatureEd25519 SignatureType = iota
	SignatureMlDsa65
)

// Size returns the detached signature size in bytes for this suite.
func (s SignatureType) Size() int {
	switch s {
	case SignatureMlDsa65:
		return 3309
	default:
		return 64
	}
}

func (s SignatureType) String() string {
	switch s {
	case SignatureEd25519:
		return "ed25519"
	case SignatureMlDsa65:
		return "ml-dsa-65"
	}
	return "unknown"
}

// Payload variant tags.
const (
	variantGenericMessage uint8 = iota
	variantNestedMessage
	variantRoutedMessage
	variantDirectRelationProposal
	variantDirectRelationAffirm
	variantNestedRelationProposal
	variantNestedRelationAffirm
	variantRelationshipCancel
)
