package store

// RelationKind enumerates the relationship states of a peer VID.
type RelationKind int

const (
	// Unrelated is the initial state: no relationship traffic yet.
	Unrelated RelationKind = iota
	// Controlled marks an identifier this store holds private keys for.
	Controlled
	// Unidirectional means we sent a proposal and await the affirm.
	Unidirectional
	// ReverseUnidirectional means we received a proposal and may accept.
	ReverseUnidirectional
	// Bidirectional is an established relationship.
	Bidirectional
	// Cancelled is a terminated relationship; sealing to it fails.
	Cancelled
)

func (k RelationKind) String() string {
	switch k {
	case Unrelated:
		return "unrelated"
	case Controlled:
		return "controlled"
	case Unidirectional:
		return "unidirectional"
	case ReverseUnidirectional:
		return "reverse-unidirectional"
	case Bidirectional:
		return "bidirectional"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// RelationStatus is the relationship state machine's per-peer record.
// ThreadID ties an affirm to the proposal it answers: for
// Unidirectional it is the digest of our outgoing proposal, for
// ReverseUnidirectional the digest of the incoming one, and for
// Bidirectional the digest the handshake settled on.
type RelationStatus struct {
	Kind     RelationKind
	ThreadID [32]byte
	// OutstandingNested tracks child identifiers proposed under a
	// Bidirectional relationship that have not been affirmed yet.
	OutstandingNested map[string]struct{}
}

// legalTransition encodes the legal relationship moves: relationship
// errors are surfaced, never auto-healed.
func legalTransition(from, to RelationKind) bool {
	if from == to {
		return true
	}
	switch from {
	case Unrelated:
		return to != Controlled
	case Controlled:
		return false
	case Unidirectional:
		return to == Bidirectional || to == Cancelled
	case ReverseUnidirectional:
		return to == Bidirectional || to == Cancelled
	case Bidirectional:
		return to == Cancelled
	case Cancelled:
		// A cancelled relationship may be restarted by a new proposal.
		return to == Unidirectional || to == ReverseUnidirectional
	}
	return false
}
