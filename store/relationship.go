package store

import (
	"crypto/rand"
	"fmt"
	"net/url"

	"github.com/cvsouth/tsp-go/cesr"
	"github.com/cvsouth/tsp-go/crypto"
	"github.com/cvsouth/tsp-go/vid"
)

// MakeRelationshipRequest seals a relationship proposal from sender to
// receiver, records the proposal's thread id and moves the pair to
// Unidirectional. The optional route is offered to the peer as a
// return path.
func (s *Store) MakeRelationshipRequest(sender, receiver string, route []string) (*url.URL, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	senderRecord, err := s.privateLocked(sender)
	if err != nil {
		return nil, nil, err
	}
	receiverRecord, err := s.recordLocked(receiver)
	if err != nil {
		return nil, nil, err
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	hops := make([][]byte, 0, len(route))
	for _, hop := range route {
		hops = append(hops, []byte(hop))
	}
	payload := cesr.DirectRelationProposal{Nonce: nonce, Hops: hops}

	thread, err := payloadThread(payload, nil)
	if err != nil {
		return nil, nil, err
	}
	endpoint, message, err := s.sealLocked(sender, receiver, nil, payload, 0)
	if err != nil {
		return nil, nil, err
	}

	receiverRecord.relation = RelationStatus{Kind: Unidirectional, ThreadID: thread}
	receiverRecord.relationVid = senderRecord.vid.Identifier()
	return endpoint, message, nil
}

// AcceptRelationship seals an affirm answering the proposal recorded
// for the pair and moves it to Bidirectional.
func (s *Store) AcceptRelationship(sender, receiver string) (*url.URL, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.privateLocked(sender); err != nil {
		return nil, nil, err
	}
	receiverRecord, err := s.recordLocked(receiver)
	if err != nil {
		return nil, nil, err
	}
	if receiverRecord.relation.Kind != ReverseUnidirectional {
		return nil, nil, RelationshipError{Reason: "accept without a received proposal"}
	}

	thread := receiverRecord.relation.ThreadID
	endpoint, message, err := s.sealLocked(sender, receiver, nil,
		cesr.DirectRelationAffirm{Reply: thread}, 0)
	if err != nil {
		return nil, nil, err
	}

	receiverRecord.relation = RelationStatus{
		Kind:              Bidirectional,
		ThreadID:          thread,
		OutstandingNested: make(map[string]struct{}),
	}
	return endpoint, message, nil
}

// CancelRelationship seals a cancel for an existing relationship and
// moves the pair to Cancelled. Sealing to the peer fails afterwards.
func (s *Store) CancelRelationship(sender, receiver string) (*url.URL, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.privateLocked(sender); err != nil {
		return nil, nil, err
	}
	receiverRecord, err := s.recordLocked(receiver)
	if err != nil {
		return nil, nil, err
	}
	switch receiverRecord.relation.Kind {
	case Unidirectional, ReverseUnidirectional, Bidirectional:
	default:
		return nil, nil, RelationshipError{Reason: "no relationship to cancel"}
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	endpoint, message, err := s.sealLocked(sender, receiver, nil, cesr.RelationshipCancel{
		Nonce: nonce,
		Reply: receiverRecord.relation.ThreadID,
	}, 0)
	if err != nil {
		return nil, nil, err
	}

	receiverRecord.relation = RelationStatus{Kind: Cancelled}
	return endpoint, message, nil
}

// MakeNestedRelationshipRequest creates a fresh nested identifier
// under parent, proposes it to the peer and returns the new identifier
// along with the sealed message. The pair must be Bidirectional.
func (s *Store) MakeNestedRelationshipRequest(parent, receiver string) (*url.URL, []byte, *vid.OwnedVid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentRecord, err := s.privateLocked(parent)
	if err != nil {
		return nil, nil, nil, err
	}
	receiverRecord, err := s.recordLocked(receiver)
	if err != nil {
		return nil, nil, nil, err
	}
	if receiverRecord.relation.Kind != Bidirectional {
		return nil, nil, nil, RelationshipError{Reason: "nested proposal outside an established relationship"}
	}

	child, err := vid.NewPeer(parentRecord.vid.Endpoint())
	if err != nil {
		return nil, nil, nil, err
	}
	s.vids[child.Identifier()] = &vidRecord{
		vid:       child.Verified(),
		owned:     child,
		relation:  RelationStatus{Kind: Controlled},
		parentVid: parentRecord.vid.Identifier(),
	}

	endpoint, message, err := s.sealLocked(parent, receiver, nil,
		cesr.NestedRelationProposal{NewVid: []byte(child.Identifier())}, 0)
	if err != nil {
		delete(s.vids, child.Identifier())
		return nil, nil, nil, err
	}

	if receiverRecord.relation.OutstandingNested == nil {
		receiverRecord.relation.OutstandingNested = make(map[string]struct{})
	}
	receiverRecord.relation.OutstandingNested[child.Identifier()] = struct{}{}
	return endpoint, message, child, nil
}

// AcceptNestedRelationship answers a nested proposal: it creates our
// own nested identifier under parent, links it to the peer's proposed
// child and seals the affirm.
func (s *Store) AcceptNestedRelationship(parent, receiver, theirChild string) (*url.URL, []byte, *vid.OwnedVid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentRecord, err := s.privateLocked(parent)
	if err != nil {
		return nil, nil, nil, err
	}
	childRecord, err := s.recordLocked(theirChild)
	if err != nil {
		return nil, nil, nil, err
	}
	if childRecord.relation.Kind != ReverseUnidirectional {
		return nil, nil, nil, RelationshipError{Reason: "nested accept without a received proposal"}
	}
	thread := childRecord.relation.ThreadID

	ourChild, err := vid.NewPeer(parentRecord.vid.Endpoint())
	if err != nil {
		return nil, nil, nil, err
	}
	s.vids[ourChild.Identifier()] = &vidRecord{
		vid:         ourChild.Verified(),
		owned:       ourChild,
		relation:    RelationStatus{Kind: Controlled},
		parentVid:   parentRecord.vid.Identifier(),
		relationVid: theirChild,
	}

	endpoint, message, err := s.sealLocked(parent, receiver, nil, cesr.NestedRelationAffirm{
		Reply:        thread,
		NewVid:       []byte(ourChild.Identifier()),
		ConnectToVid: []byte(theirChild),
	}, 0)
	if err != nil {
		delete(s.vids, ourChild.Identifier())
		return nil, nil, nil, err
	}

	childRecord.relation = RelationStatus{
		Kind:              Bidirectional,
		ThreadID:          thread,
		OutstandingNested: make(map[string]struct{}),
	}
	childRecord.relationVid = ourChild.Identifier()
	return endpoint, message, ourChild, nil
}

// payloadThread computes the thread id a peer will derive for a sealed
// payload: the digest of the payload plaintext and the
// non-confidential data.
func payloadThread(payload cesr.Payload, nonConfidential []byte) ([32]byte, error) {
	plaintext, err := cesr.EncodePayload(nil, payload)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Sha256(append(plaintext, nonConfidential...)), nil
}
