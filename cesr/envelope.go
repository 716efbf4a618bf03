package cesr

// Envelope is the addressing part of a TSP message: everything in the
// signed region except the ciphertext.
type Envelope struct {
	CryptoType      CryptoType
	SignatureType   SignatureType
	Sender          []byte
	Receiver        []byte // nil for broadcast signed messages
	NonConfidential []byte // nil if absent
}

// EncodeEnvelope appends the version genus, the suite tag and the
// addressing frames. The ciphertext frame and signature are appended
// separately so the caller can compute them over these bytes.
func EncodeEnvelope(dst []byte, env Envelope) ([]byte, error) {
	dst = appendGenus(dst, genusTSP, ProtocolVersion)
	dst = appendFixed(dst, idSuite, []byte{byte(env.CryptoType), byte(env.SignatureType)})

	var err error
	if dst, err = appendVid(dst, env.Sender); err != nil {
		return nil, err
	}
	if env.Receiver != nil {
		if dst, err = appendVid(dst, env.Receiver); err != nil {
			return nil, err
		}
	}
	if env.NonConfidential != nil {
		if dst, err = appendVariable(dst, idNonConf, env.NonConfidential); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// EncodeCiphertext appends the ciphertext frame of a confidential
// message.
func EncodeCiphertext(dst []byte, ciphertext []byte) ([]byte, error) {
	return appendVariable(dst, idCiphertext, ciphertext)
}

// EncodeSignature appends the detached signature frame. The signature
// covers every byte already in dst.
func EncodeSignature(dst []byte, signature []byte) []byte {
	return appendFixed(dst, idSignature, signature)
}

// EnvelopeView is a parsed envelope whose fields are views into the
// decoded message buffer.
type EnvelopeView struct {
	Envelope Envelope

	// Ciphertext is nil for plaintext-suite messages. It aliases the
	// message buffer, so it may be decrypted in place.
	Ciphertext []byte

	// Signature is the detached signature over SignedData.
	Signature []byte

	signed    []byte
	headerLen int
}

// SignedData returns the signed region: every frame before the
// signature.
func (v *EnvelopeView) SignedData() []byte {
	return v.signed
}

// Header returns the addressing frames: the signed region minus the
// ciphertext frame. This is the HPKE info and AAD on both sides.
func (v *EnvelopeView) Header() []byte {
	return v.signed[:v.headerLen]
}

// DecodeEnvelope parses a binary-domain TSP message into a view. Use
// ToBinary first for streams that may be in the text domain.
func DecodeEnvelope(raw []byte) (*EnvelopeView, error) {
	stream := raw

	version, ok := decodeGenus(genusTSP, &stream)
	if !ok {
		return nil, ErrVersionMismatch
	}
	if version != ProtocolVersion {
		return nil, ErrVersionMismatch
	}

	suite, ok := decodeFixed(idSuite, 2, &stream)
	if !ok {
		return nil, ErrUnexpectedMsgType
	}
	cryptoType, signatureType := CryptoType(suite[0]), SignatureType(suite[1])
	if cryptoType > CryptoHpkePq || signatureType > SignatureMlDsa65 {
		return nil, ErrUnexpectedMsgType
	}

	sender, err := decodeVid(&stream)
	if err != nil {
		return nil, err
	}

	// Receiver and non-confidential data are optional; their frame
	// identifiers disambiguate them.
	receiver, _ := decodeVariable(idVid, &stream)
	if receiver != nil && !validVid(receiver) {
		return nil, ErrVid
	}
	nonConfidential, _ := decodeVariable(idNonConf, &stream)

	headerLen := len(raw) - len(stream)

	var ciphertext []byte
	if cryptoType != CryptoPlaintext {
		if ciphertext, ok = decodeVariable(idCiphertext, &stream); !ok {
			return nil, ErrUnexpectedData
		}
	}

	signedLen := len(raw) - len(stream)

	signature, ok := decodeFixed(idSignature, signatureType.Size(), &stream)
	if !ok {
		return nil, ErrSignature
	}
	if len(stream) != 0 {
		return nil, ErrTrailingGarbage
	}

	return &EnvelopeView{
		Envelope: Envelope{
			CryptoType:      cryptoType,
			SignatureType:   signatureType,
			Sender:          sender,
			Receiver:        receiver,
			NonConfidential: nonConfidential,
		},
		Ciphertext: ciphertext,
		Signature:  signature,
		signed:     raw[:signedLen],
		headerLen:  headerLen,
	}, nil
}
