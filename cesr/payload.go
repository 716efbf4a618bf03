package cesr

import "unicode/utf8"

// Payload is the closed set of message bodies a TSP envelope can carry.
// Decoded payloads hold views into the decode buffer; callers that keep
// a payload beyond the buffer's lifetime must copy the byte fields.
type Payload interface {
	isPayload()
}

// GenericMessage carries opaque application content.
type GenericMessage []byte

// NestedMessage carries a complete inner TSP message between nested
// identifiers.
type NestedMessage []byte

// RoutedMessage carries an opaque inner message and the list of hops it
// still has to travel. The hop list is never empty.
type RoutedMessage struct {
	Hops    [][]byte
	Message []byte
}

// DirectRelationProposal opens a relationship, carrying a fresh nonce
// and an optional return route.
type DirectRelationProposal struct {
	Nonce [32]byte
	Hops  [][]byte
}

// DirectRelationAffirm accepts a relationship; Reply is the thread id
// of the proposal it answers.
type DirectRelationAffirm struct {
	Reply [32]byte
}

// NestedRelationProposal proposes a child relationship under an
// existing one, introducing the proposer's new nested identifier.
type NestedRelationProposal struct {
	NewVid []byte
}

// NestedRelationAffirm accepts a nested relationship, introducing the
// accepter's own nested identifier and naming the proposer's.
type NestedRelationAffirm struct {
	Reply        [32]byte
	NewVid       []byte
	ConnectToVid []byte
}

// RelationshipCancel terminates a relationship.
type RelationshipCancel struct {
	Nonce [32]byte
	Reply [32]byte
}

func (GenericMessage) isPayload()         {}
func (NestedMessage) isPayload()          {}
func (RoutedMessage) isPayload()          {}
func (DirectRelationProposal) isPayload() {}
func (DirectRelationAffirm) isPayload()   {}
func (NestedRelationProposal) isPayload() {}
func (NestedRelationAffirm) isPayload()   {}
func (RelationshipCancel) isPayload()     {}

// EncodePayload appends the CESR form of a payload: a one-byte variant
// tag frame followed by the variant's fields.
func EncodePayload(dst []byte, payload Payload) ([]byte, error) {
	var err error
	switch p := payload.(type) {
	case GenericMessage:
		dst = appendFixed(dst, idPayloadType, []byte{variantGenericMessage})
		dst, err = appendVariable(dst, idPayloadBody, p)

	case NestedMessage:
		dst = appendFixed(dst, idPayloadType, []byte{variantNestedMessage})
		dst, err = appendVariable(dst, idPayloadBody, p)

	case RoutedMessage:
		if len(p.Hops) == 0 {
			return nil, ErrMissingHops
		}
		dst = appendFixed(dst, idPayloadType, []byte{variantRoutedMessage})
		if dst, err = appendHops(dst, p.Hops); err != nil {
			return nil, err
		}
		dst, err = appendVariable(dst, idPayloadBody, p.Message)

	case DirectRelationProposal:
		dst = appendFixed(dst, idPayloadType, []byte{variantDirectRelationProposal})
		dst = appendFixed(dst, idNonce, p.Nonce[:])
		dst, err = appendHops(dst, p.Hops)

	case DirectRelationAffirm:
		dst = appendFixed(dst, idPayloadType, []byte{variantDirectRelationAffirm})
		dst = appendFixed(dst, idDigest, p.Reply[:])

	case NestedRelationProposal:
		dst = appendFixed(dst, idPayloadType, []byte{variantNestedRelationProposal})
		dst, err = appendVid(dst, p.NewVid)

	case NestedRelationAffirm:
		dst = appendFixed(dst, idPayloadType, []byte{variantNestedRelationAffirm})
		dst = appendFixed(dst, idDigest, p.Reply[:])
		if dst, err = appendVid(dst, p.NewVid); err != nil {
			return nil, err
		}
		dst, err = appendVid(dst, p.ConnectToVid)

	case RelationshipCancel:
		dst = appendFixed(dst, idPayloadType, []byte{variantRelationshipCancel})
		dst = appendFixed(dst, idNonce, p.Nonce[:])
		dst = appendFixed(dst, idDigest, p.Reply[:])

	default:
		return nil, ErrUnexpectedMsgType
	}
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// DecodePayload decodes a complete payload, rejecting trailing bytes.
func DecodePayload(data []byte) (Payload, error) {
	stream := data

	tag, ok := decodeFixed(idPayloadType, 1, &stream)
	if !ok {
		return nil, ErrUnexpectedData
	}

	var payload Payload
	switch tag[0] {
	case variantGenericMessage:
		body, ok := decodeVariable(idPayloadBody, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		payload = GenericMessage(body)

	case variantNestedMessage:
		body, ok := decodeVariable(idPayloadBody, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		payload = NestedMessage(body)

	case variantRoutedMessage:
		hops, err := decodeHops(&stream)
		if err != nil {
			return nil, err
		}
		if len(hops) == 0 {
			return nil, ErrMissingHops
		}
		body, ok := decodeVariable(idPayloadBody, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		payload = RoutedMessage{Hops: hops, Message: body}

	case variantDirectRelationProposal:
		nonce, ok := decodeFixed(idNonce, 32, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		hops, err := decodeHops(&stream)
		if err != nil {
			return nil, err
		}
		p := DirectRelationProposal{Hops: hops}
		copy(p.Nonce[:], nonce)
		payload = p

	case variantDirectRelationAffirm:
		reply, ok := decodeFixed(idDigest, 32, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		p := DirectRelationAffirm{}
		copy(p.Reply[:], reply)
		payload = p

	case variantNestedRelationProposal:
		vid, err := decodeVid(&stream)
		if err != nil {
			return nil, err
		}
		payload = NestedRelationProposal{NewVid: vid}

	case variantNestedRelationAffirm:
		reply, ok := decodeFixed(idDigest, 32, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		newVid, err := decodeVid(&stream)
		if err != nil {
			return nil, err
		}
		connectTo, err := decodeVid(&stream)
		if err != nil {
			return nil, err
		}
		p := NestedRelationAffirm{NewVid: newVid, ConnectToVid: connectTo}
		copy(p.Reply[:], reply)
		payload = p

	case variantRelationshipCancel:
		nonce, ok := decodeFixed(idNonce, 32, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		reply, ok := decodeFixed(idDigest, 32, &stream)
		if !ok {
			return nil, ErrUnexpectedData
		}
		p := RelationshipCancel{}
		copy(p.Nonce[:], nonce)
		copy(p.Reply[:], reply)
		payload = p

	default:
		return nil, ErrUnexpectedMsgType
	}

	if len(stream) != 0 {
		return nil, ErrTrailingGarbage
	}
	return payload, nil
}

func appendHops(dst []byte, hops [][]byte) ([]byte, error) {
	if len(hops) >= 1<<12 {
		return nil, ErrPayloadTooLarge
	}
	dst = appendCount(dst, idHops, uint16(len(hops)))
	var err error
	for _, hop := range hops {
		if dst, err = appendVid(dst, hop); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeHops(stream *[]byte) ([][]byte, error) {
	count, ok := decodeCount(idHops, stream)
	if !ok {
		return nil, ErrUnexpectedData
	}
	var hops [][]byte
	for i := 0; i < int(count); i++ {
		hop, err := decodeVid(stream)
		if err != nil {
			return nil, err
		}
		hops = append(hops, hop)
	}
	return hops, nil
}

func appendVid(dst []byte, vid []byte) ([]byte, error) {
	if !validVid(vid) {
		return nil, ErrInvalidVid
	}
	return appendVariable(dst, idVid, vid)
}

func decodeVid(stream *[]byte) ([]byte, error) {
	vid, ok := decodeVariable(idVid, stream)
	if !ok || !validVid(vid) {
		return nil, ErrVid
	}
	return vid, nil
}

// validVid accepts identifiers that are UTF-8 and free of control
// bytes, so they survive both CESR domains and diagnostics unmangled.
func validVid(vid []byte) bool {
	if len(vid) == 0 || !utf8.Valid(vid) {
		return false
	}
	for _, b := range vid {
		if b < 0x20 || b == 0x7f {
			return false
		}
	}
	return true
}
