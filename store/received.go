package store

import "github.com/cvsouth/tsp-go/cesr"

// ReceivedMessage is what OpenMessage hands to higher layers: one
// variant per protocol outcome. Byte fields are owned copies, safe to
// keep after the wire buffer is reused.
type ReceivedMessage interface {
	isReceived()
}

// ReceivedGeneric is application content from an established peer.
type ReceivedGeneric struct {
	Sender          string
	NonConfidential []byte
	Message         []byte
	CryptoType      cesr.CryptoType
	SignatureType   cesr.SignatureType
}

// RequestRelationship is an incoming relationship proposal. NestedVid
// is set when the proposal introduces a child identifier. ThreadID is
// what an accept must echo.
type RequestRelationship struct {
	Sender    string
	Route     []string
	NestedVid string
	ThreadID  [32]byte
}

// AcceptRelationship is an incoming affirm matching a proposal we sent.
type AcceptRelationship struct {
	Sender    string
	NestedVid string
}

// CancelRelationship terminates a relationship at the peer's request.
type CancelRelationship struct {
	Sender string
}

// ForwardRequest is produced when a routed message lands on a store
// that is not its final destination: the caller should forward
// OpaquePayload towards NextHop.
type ForwardRequest struct {
	Sender        string
	NextHop       string
	Route         []string
	OpaquePayload []byte
}

func (ReceivedGeneric) isReceived()     {}
func (RequestRelationship) isReceived() {}
func (AcceptRelationship) isReceived()  {}
func (CancelRelationship) isReceived()  {}
func (ForwardRequest) isReceived()      {}
