// Package store implements the in-memory catalogue of verified
// identifiers, their relationship states and routes, and the seal /
// open / forward flows that mutate it. It is the synchronous core of
// the protocol: no operation here suspends or performs I/O.
package store

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/cvsouth/tsp-go/crypto"
	"github.com/cvsouth/tsp-go/queue"
	"github.com/cvsouth/tsp-go/vid"
)

// Config carries the store-level options.
type Config struct {
	// UseLocalCertificate makes the transport collaborator accept a
	// locally provisioned TLS certificate instead of the system roots.
	UseLocalCertificate bool
	// RetryPolicy is handed to the transport collaborator for
	// redelivery of queued messages.
	RetryPolicy queue.RetryPolicy
	// DefaultTransport is a default endpoint carried with the store
	// options. No store operation reads it; identifiers are always
	// bound with an explicit endpoint.
	DefaultTransport *url.URL
}

// vidRecord is the per-identifier state. Records are owned by the
// store; no references escape its methods.
type vidRecord struct {
	vid      *vid.Vid
	owned    *vid.OwnedVid // nil for verified-only records
	relation RelationStatus
	// relationVid names our local identifier this peer relates to.
	relationVid string
	// parentVid links a nested identifier to its parent.
	parentVid string
	// tunnel is the ordered list of intermediaries messages to this
	// identifier are routed through.
	tunnel []string
}

// Store is the VID catalogue. It may be shared across tasks: the VID
// map sits behind a reader-writer lock, and every operation completes
// without suspending, so no lock is ever held across a yield.
type Store struct {
	mu      sync.RWMutex
	vids    map[string]*vidRecord
	aliases map[string]string

	config Config
	logger *slog.Logger
}

// New creates an empty store with default configuration.
func New() *Store {
	return NewWithConfig(Config{RetryPolicy: queue.DefaultRetryPolicy()})
}

// NewWithConfig creates an empty store with the given options.
func NewWithConfig(config Config) *Store {
	return &Store{
		vids:    make(map[string]*vidRecord),
		aliases: make(map[string]string),
		config:  config,
		logger:  slog.Default(),
	}
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Config returns the store-level options.
func (s *Store) Config() Config {
	return s.config
}

// AddPrivateVid inserts an identifier this endpoint controls. It is
// idempotent for identical key material and fails with ErrKeyMismatch
// otherwise. An empty alias adds none.
func (s *Store) AddPrivateVid(owned *vid.OwnedVid, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := owned.Identifier()
	if existing, ok := s.vids[id]; ok {
		if !crypto.KeysEqual(existing.vid.VerifyingKey(), owned.VerifyingKey()) ||
			!crypto.KeysEqual(existing.vid.EncryptionKey(), owned.EncryptionKey()) {
			return ErrKeyMismatch
		}
		existing.owned = owned
		existing.relation.Kind = Controlled
	} else {
		s.vids[id] = &vidRecord{
			vid:      owned.Verified(),
			owned:    owned,
			relation: RelationStatus{Kind: Controlled},
		}
	}

	if alias != "" {
		return s.setAliasLocked(alias, id)
	}
	s.logger.Debug("added private vid", "vid", id)
	return nil
}

// AddVerifiedVid inserts or refreshes a public record. It fails with
// ErrKeyMismatch if the identifier is already present with different
// key material.
func (s *Store) AddVerifiedVid(v *vid.Vid, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := v.Identifier()
	if existing, ok := s.vids[id]; ok {
		if !crypto.KeysEqual(existing.vid.VerifyingKey(), v.VerifyingKey()) ||
			!crypto.KeysEqual(existing.vid.EncryptionKey(), v.EncryptionKey()) {
			return ErrKeyMismatch
		}
		existing.vid = v
	} else {
		s.vids[id] = &vidRecord{vid: v}
	}

	if alias != "" {
		return s.setAliasLocked(alias, id)
	}
	return nil
}

// VerifyVid resolves and verifies an identifier (offline for did:peer,
// through the resolver otherwise) and adds it to the store.
func (s *Store) VerifyVid(ctx context.Context, id string, alias string, resolver vid.Resolver) (*vid.Vid, error) {
	verified, err := vid.Verify(ctx, id, resolver)
	if err != nil {
		return nil, err
	}
	if err := s.AddVerifiedVid(verified, alias); err != nil {
		return nil, err
	}
	return verified, nil
}

// SetAlias points alias at an existing identifier.
func (s *Store) SetAlias(alias, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAliasLocked(alias, id)
}

func (s *Store) setAliasLocked(alias, id string) error {
	if _, ok := s.vids[id]; !ok {
		return MissingVidError{ID: id}
	}
	if existing, ok := s.aliases[alias]; ok && existing != id {
		return ErrAliasTaken
	}
	s.aliases[alias] = id
	return nil
}

// Resolve maps an alias or full identifier to the identifier of a
// known record.
func (s *Store) Resolve(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(name)
}

func (s *Store) resolveLocked(name string) (string, error) {
	if id, ok := s.aliases[name]; ok {
		return id, nil
	}
	if _, ok := s.vids[name]; ok {
		return name, nil
	}
	return "", MissingVidError{ID: name}
}

// Vid returns the public record for an alias or identifier.
func (s *Store) Vid(name string) (*vid.Vid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, err := s.recordLocked(name)
	if err != nil {
		return nil, err
	}
	return record.vid, nil
}

// HasPrivateVid reports whether the store controls the identifier.
func (s *Store) HasPrivateVid(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, err := s.resolveLocked(name)
	if err != nil {
		return false
	}
	return s.vids[id].owned != nil
}

// RemoveVid deletes a record and any aliases pointing at it.
func (s *Store) RemoveVid(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.resolveLocked(name)
	if err != nil {
		return err
	}
	delete(s.vids, id)
	for alias, target := range s.aliases {
		if target == id {
			delete(s.aliases, alias)
		}
	}
	return nil
}

// SetRelation applies a relationship transition, enforcing the state
// machine's legal moves.
func (s *Store) SetRelation(name string, status RelationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.recordLocked(name)
	if err != nil {
		return err
	}
	if !legalTransition(record.relation.Kind, status.Kind) {
		return RelationshipError{
			Reason: "illegal transition from " + record.relation.Kind.String() + " to " + status.Kind.String(),
		}
	}
	record.relation = status
	return nil
}

// Relation returns the relationship status recorded for an identifier.
func (s *Store) Relation(name string) (RelationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.recordLocked(name)
	if err != nil {
		return RelationStatus{}, err
	}
	return record.relation, nil
}

// SetParentForVid records nested parentage. The child must be
// controlled by this store and the parent must exist; an empty parent
// clears the link.
func (s *Store) SetParentForVid(child, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	childRecord, err := s.recordLocked(child)
	if err != nil {
		return err
	}
	if parent == "" {
		childRecord.parentVid = ""
		return nil
	}
	if childRecord.owned == nil {
		return MissingPrivateVidError{ID: child}
	}
	parentID, err := s.resolveLocked(parent)
	if err != nil {
		return err
	}
	childRecord.parentVid = parentID
	return nil
}

// SetRouteForVid stores the onion route for an identifier. Every hop
// must be a known verified VID with a transport; an empty route clears
// the tunnel.
func (s *Store) SetRouteForVid(name string, route []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.recordLocked(name)
	if err != nil {
		return err
	}

	resolved := make([]string, 0, len(route))
	for _, hop := range route {
		hopID, err := s.resolveLocked(hop)
		if err != nil {
			return InvalidNextHopError{ID: hop}
		}
		if s.vids[hopID].vid.Endpoint() == nil {
			return InvalidNextHopError{ID: hop}
		}
		resolved = append(resolved, hopID)
	}
	record.tunnel = resolved
	return nil
}

// recordLocked resolves a name and returns its record.
func (s *Store) recordLocked(name string) (*vidRecord, error) {
	id, err := s.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	return s.vids[id], nil
}

// privateLocked resolves a name to a record the store controls.
func (s *Store) privateLocked(name string) (*vidRecord, error) {
	record, err := s.recordLocked(name)
	if err != nil {
		return nil, err
	}
	if record.owned == nil {
		return nil, MissingPrivateVidError{ID: record.vid.Identifier()}
	}
	return record, nil
}

// ExportVid is the snapshot form of a record, used by the wallet.
type ExportVid struct {
	Vid         *vid.Vid
	Owned       *vid.OwnedVid
	Relation    RelationStatus
	RelationVid string
	ParentVid   string
	Tunnel      []string
	Aliases     []string
}

// ExportVids snapshots every record for persistence.
func (s *Store) ExportVids() []ExportVid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[string][]string)
	for alias, id := range s.aliases {
		byID[id] = append(byID[id], alias)
	}

	exports := make([]ExportVid, 0, len(s.vids))
	for id, record := range s.vids {
		exports = append(exports, ExportVid{
			Vid:         record.vid,
			Owned:       record.owned,
			Relation:    record.relation,
			RelationVid: record.relationVid,
			ParentVid:   record.parentVid,
			Tunnel:      append([]string(nil), record.tunnel...),
			Aliases:     byID[id],
		})
	}
	return exports
}

// ImportVids restores records from a wallet snapshot.
func (s *Store) ImportVids(exports []ExportVid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, export := range exports {
		record := &vidRecord{
			vid:         export.Vid,
			owned:       export.Owned,
			relation:    export.Relation,
			relationVid: export.RelationVid,
			parentVid:   export.ParentVid,
			tunnel:      append([]string(nil), export.Tunnel...),
		}
		id := export.Vid.Identifier()
		s.vids[id] = record
		for _, alias := range export.Aliases {
			if err := s.setAliasLocked(alias, id); err != nil {
				return err
			}
		}
	}
	return nil
}
