package store

import (
	"fmt"
	"net/url"

	"github.com/cvsouth/tsp-go/cesr"
	"github.com/cvsouth/tsp-go/crypto"
	"github.com/cvsouth/tsp-go/vid"
)

// maxWrapDepth bounds recursive routed/nested wrapping so a cyclic
// route table cannot recurse forever.
const maxWrapDepth = 8

// SealMessage seals application content from sender to receiver and
// returns the destination URL and the wire bytes. Routing and nesting
// configured for the pair are applied automatically.
func (s *Store) SealMessage(sender, receiver string, nonConfidential []byte, message []byte) (*url.URL, []byte, error) {
	return s.SealPayload(sender, receiver, nonConfidential, cesr.GenericMessage(message))
}

// SealPayload is SealMessage for an arbitrary payload variant.
func (s *Store) SealPayload(sender, receiver string, nonConfidential []byte, payload cesr.Payload) (*url.URL, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealLocked(sender, receiver, nonConfidential, payload, 0)
}

func (s *Store) sealLocked(sender, receiver string, nonConfidential []byte, payload cesr.Payload, depth int) (*url.URL, []byte, error) {
	if depth > maxWrapDepth {
		return nil, nil, fmt.Errorf("store: route or nesting deeper than %d levels", maxWrapDepth)
	}

	senderRecord, err := s.privateLocked(sender)
	if err != nil {
		return nil, nil, err
	}
	receiverRecord, err := s.recordLocked(receiver)
	if err != nil {
		return nil, nil, err
	}
	if receiverRecord.relation.Kind == Cancelled {
		return nil, nil, RelationshipError{Reason: "relationship with " + receiverRecord.vid.Identifier() + " is cancelled"}
	}

	// An onion route wraps the sealed message for the first
	// intermediary; the remaining hops plus the receiver travel in the
	// payload.
	if len(receiverRecord.tunnel) > 0 {
		inner, err := crypto.Seal(senderRecord.owned, receiverRecord.vid, nonConfidential, payload)
		if err != nil {
			return nil, nil, err
		}
		hops := make([][]byte, 0, len(receiverRecord.tunnel))
		for _, hop := range receiverRecord.tunnel[1:] {
			hops = append(hops, []byte(hop))
		}
		hops = append(hops, []byte(receiverRecord.vid.Identifier()))
		return s.sealLocked(sender, receiverRecord.tunnel[0], nil,
			cesr.RoutedMessage{Hops: hops, Message: inner}, depth+1)
	}

	// A nested pair reseals through the parents.
	if senderRecord.parentVid != "" && receiverRecord.parentVid != "" {
		inner, err := crypto.Seal(senderRecord.owned, receiverRecord.vid, nonConfidential, payload)
		if err != nil {
			return nil, nil, err
		}
		return s.sealLocked(senderRecord.parentVid, receiverRecord.parentVid, nil,
			cesr.NestedMessage(inner), depth+1)
	}

	message, err := crypto.Seal(senderRecord.owned, receiverRecord.vid, nonConfidential, payload)
	if err != nil {
		return nil, nil, err
	}
	return receiverRecord.vid.Endpoint(), message, nil
}

// OpenMessage parses, verifies and decrypts an incoming message and
// applies any relationship state it carries. The buffer is modified in
// place; returned views are copied before they escape.
func (s *Store) OpenMessage(message []byte) (ReceivedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(message)
}

func (s *Store) openLocked(message []byte) (ReceivedMessage, error) {
	binary, err := cesr.ToBinary(message)
	if err != nil {
		return nil, err
	}
	view, err := cesr.DecodeEnvelope(binary)
	if err != nil {
		return nil, err
	}

	sender := string(view.Envelope.Sender)
	senderRecord, ok := s.vids[sender]
	if !ok {
		return nil, UnverifiedSourceError{ID: sender}
	}

	// Non-confidential messages carry their payload in the clear.
	if view.Envelope.CryptoType == cesr.CryptoPlaintext {
		payload, err := crypto.Verify(senderRecord.vid, binary)
		if err != nil {
			return nil, err
		}
		return ReceivedGeneric{
			Sender:        sender,
			Message:       append([]byte(nil), payload...),
			CryptoType:    view.Envelope.CryptoType,
			SignatureType: view.Envelope.SignatureType,
		}, nil
	}

	receiver := string(view.Envelope.Receiver)
	receiverRecord, ok := s.vids[receiver]
	if !ok {
		return nil, MissingVidError{ID: receiver}
	}
	if receiverRecord.owned == nil {
		return nil, MissingPrivateVidError{ID: receiver}
	}

	contents, err := crypto.Open(receiverRecord.owned, senderRecord.vid, binary)
	if err != nil {
		return nil, err
	}

	// The thread id ties relationship replies to proposals: the digest
	// of the payload plaintext and the non-confidential data.
	thread := crypto.Sha256(append(append([]byte(nil), contents.Raw...), contents.NonConfidential...))

	switch payload := contents.Payload.(type) {
	case cesr.GenericMessage:
		return ReceivedGeneric{
			Sender:          sender,
			NonConfidential: append([]byte(nil), contents.NonConfidential...),
			Message:         append([]byte(nil), payload...),
			CryptoType:      contents.CryptoType,
			SignatureType:   contents.SignatureType,
		}, nil

	case cesr.NestedMessage:
		// The inner message travels between nested identifiers; open
		// it like any other incoming message.
		return s.openLocked(payload)

	case cesr.RoutedMessage:
		return s.handleRoutedLocked(sender, payload)

	case cesr.DirectRelationProposal:
		return s.handleProposalLocked(sender, receiver, payload, thread)

	case cesr.DirectRelationAffirm:
		return s.handleAffirmLocked(senderRecord, payload)

	case cesr.NestedRelationProposal:
		return s.handleNestedProposalLocked(sender, senderRecord, payload, thread)

	case cesr.NestedRelationAffirm:
		return s.handleNestedAffirmLocked(sender, senderRecord, payload)

	case cesr.RelationshipCancel:
		return s.handleCancelLocked(sender, senderRecord, payload)

	default:
		return nil, cesr.ErrUnexpectedMsgType
	}
}

func (s *Store) handleRoutedLocked(sender string, payload cesr.RoutedMessage) (ReceivedMessage, error) {
	next := string(payload.Hops[0])

	// A routed message whose single remaining hop is an identifier we
	// control has arrived: drop off by opening the inner message.
	if len(payload.Hops) == 1 {
		if record, ok := s.vids[next]; ok && record.owned != nil {
			return s.openLocked(payload.Message)
		}
	}

	route := make([]string, 0, len(payload.Hops)-1)
	for _, hop := range payload.Hops[1:] {
		route = append(route, string(hop))
	}
	return ForwardRequest{
		Sender:        sender,
		NextHop:       next,
		Route:         route,
		OpaquePayload: append([]byte(nil), payload.Message...),
	}, nil
}

func (s *Store) handleProposalLocked(sender, receiver string, payload cesr.DirectRelationProposal, thread [32]byte) (ReceivedMessage, error) {
	record := s.vids[sender]
	if record.relation.Kind == Controlled {
		return nil, RelationshipError{Reason: "relationship proposal from a controlled vid"}
	}

	// A fresh proposal restarts the relationship regardless of its
	// previous state.
	record.relation = RelationStatus{Kind: ReverseUnidirectional, ThreadID: thread}
	record.relationVid = receiver

	route := make([]string, 0, len(payload.Hops))
	for _, hop := range payload.Hops {
		route = append(route, string(hop))
	}
	return RequestRelationship{Sender: sender, Route: route, ThreadID: thread}, nil
}

func (s *Store) handleAffirmLocked(senderRecord *vidRecord, payload cesr.DirectRelationAffirm) (ReceivedMessage, error) {
	if senderRecord.relation.Kind != Unidirectional {
		return nil, RelationshipError{Reason: "affirm without an outstanding proposal"}
	}
	if payload.Reply != senderRecord.relation.ThreadID {
		return nil, RelationshipError{Reason: "affirm does not match the proposal thread"}
	}
	senderRecord.relation = RelationStatus{
		Kind:              Bidirectional,
		ThreadID:          payload.Reply,
		OutstandingNested: make(map[string]struct{}),
	}
	return AcceptRelationship{Sender: senderRecord.vid.Identifier()}, nil
}

func (s *Store) handleNestedProposalLocked(sender string, senderRecord *vidRecord, payload cesr.NestedRelationProposal, thread [32]byte) (ReceivedMessage, error) {
	if senderRecord.relation.Kind != Bidirectional {
		return nil, RelationshipError{Reason: "nested proposal outside an established relationship"}
	}

	newVid := string(payload.NewVid)
	verified, err := vid.VerifyOffline(newVid)
	if err != nil {
		return nil, err
	}
	s.vids[newVid] = &vidRecord{
		vid:       verified,
		parentVid: sender,
		relation:  RelationStatus{Kind: ReverseUnidirectional, ThreadID: thread},
	}
	return RequestRelationship{Sender: sender, NestedVid: newVid, ThreadID: thread}, nil
}

func (s *Store) handleNestedAffirmLocked(sender string, senderRecord *vidRecord, payload cesr.NestedRelationAffirm) (ReceivedMessage, error) {
	connectTo := string(payload.ConnectToVid)
	if _, outstanding := senderRecord.relation.OutstandingNested[connectTo]; !outstanding {
		return nil, RelationshipError{Reason: "nested affirm for an unknown proposal"}
	}
	ourChild, ok := s.vids[connectTo]
	if !ok || ourChild.owned == nil {
		return nil, MissingPrivateVidError{ID: connectTo}
	}

	newVid := string(payload.NewVid)
	verified, err := vid.VerifyOffline(newVid)
	if err != nil {
		return nil, err
	}

	delete(senderRecord.relation.OutstandingNested, connectTo)
	s.vids[newVid] = &vidRecord{
		vid:         verified,
		parentVid:   sender,
		relationVid: connectTo,
		relation: RelationStatus{
			Kind:              Bidirectional,
			ThreadID:          payload.Reply,
			OutstandingNested: make(map[string]struct{}),
		},
	}
	ourChild.relationVid = newVid

	return AcceptRelationship{Sender: sender, NestedVid: newVid}, nil
}

func (s *Store) handleCancelLocked(sender string, senderRecord *vidRecord, payload cesr.RelationshipCancel) (ReceivedMessage, error) {
	switch senderRecord.relation.Kind {
	case Unidirectional, ReverseUnidirectional, Bidirectional:
	default:
		return nil, RelationshipError{Reason: "cancel without a relationship"}
	}
	if payload.Reply != senderRecord.relation.ThreadID {
		return nil, RelationshipError{Reason: "cancel does not match the relationship thread"}
	}
	senderRecord.relation = RelationStatus{Kind: Cancelled}
	return CancelRelationship{Sender: sender}, nil
}

// ForwardRoutedMessage reseals an opaque routed payload for its next
// hop, using this store's own identifier as sender. An empty remaining
// route means the payload is a complete message for the next hop and
// travels unchanged.
func (s *Store) ForwardRoutedMessage(nextHop string, route []string, opaquePayload []byte) (*url.URL, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hopRecord, err := s.recordLocked(nextHop)
	if err != nil {
		return nil, nil, InvalidNextHopError{ID: nextHop}
	}
	if hopRecord.vid.Endpoint() == nil {
		return nil, nil, InvalidNextHopError{ID: nextHop}
	}

	if len(route) == 0 {
		return hopRecord.vid.Endpoint(), opaquePayload, nil
	}

	sender, err := s.forwarderLocked(hopRecord)
	if err != nil {
		return nil, nil, err
	}
	hops := make([][]byte, 0, len(route))
	for _, hop := range route {
		hops = append(hops, []byte(hop))
	}
	return s.sealLocked(sender, hopRecord.vid.Identifier(), nil,
		cesr.RoutedMessage{Hops: hops, Message: opaquePayload}, 0)
}

// forwarderLocked picks the private identifier to forward with: the
// one the next hop relates to, or the store's only private vid.
func (s *Store) forwarderLocked(hopRecord *vidRecord) (string, error) {
	if rel := hopRecord.relationVid; rel != "" {
		if record, ok := s.vids[rel]; ok && record.owned != nil {
			return rel, nil
		}
	}

	var only string
	for id, record := range s.vids {
		if record.owned == nil {
			continue
		}
		if only != "" {
			return "", MissingPrivateVidError{ID: hopRecord.vid.Identifier()}
		}
		only = id
	}
	if only == "" {
		return "", MissingPrivateVidError{ID: hopRecord.vid.Identifier()}
	}
	return only, nil
}
