// Package document implements the Document Store (spec §4.D): revisioned
// content, its operation log, and snapshot/merge support. Successful
// applies are linearizable per document; across documents, applies are
// independent (spec §5).
package document

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolabhq/tilepad/pkg/locks"
	"github.com/kolabhq/tilepad/pkg/model"
	"github.com/kolabhq/tilepad/pkg/mutator"
)

// entry is the store's internal per-document state. mu serializes the
// (lock-check, mutate, revision-bump, log-append) quadruple for this
// document only — applies against other documents never wait on it.
type entry struct {
	mu           sync.Mutex
	doc          model.Document
	ops          []model.Operation
	lastModified time.Time
}

// Store holds every open document, its operation log, and a lock table
// shared across all of them (keyed internally by documentId+path so two
// documents never contend on the same path string).
type Store struct {
	mu    sync.RWMutex
	docs  map[string]*entry
	locks *locks.Table
}

// NewStore creates an empty Document Store backed by locks for path
// exclusion. Passing a shared *locks.Table lets a caller that also wants
// direct lock introspection (e.g. a "who's editing what" UI) observe the
// same table the store consults on every apply.
func NewStore(lockTable *locks.Table) *Store {
	if lockTable == nil {
		lockTable = locks.New()
	}
	return &Store{
		docs:  make(map[string]*entry),
		locks: lockTable,
	}
}

func lockKey(documentID, path string) string {
	return documentID + "\x00" + path
}

// CreateDocument creates (or overwrites) a document. Overwriting an
// existing id is the caller's responsibility to avoid colliding with
// in-flight editors.
func (s *Store) CreateDocument(documentID string, initialContent any, userID string) model.Document {
	now := time.Now()
	content := deepClone(initialContent)
	doc := model.Document{
		ID:        documentID,
		Revision:  0,
		Content:   content,
		Hash:      digest(content),
		CreatedBy: userID,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.docs[documentID] = &entry{doc: doc, ops: nil, lastModified: now}
	s.mu.Unlock()

	return cloneDoc(doc)
}

// GetDocument returns a deep copy of the document, or ok=false if unknown.
func (s *Store) GetDocument(documentID string) (model.Document, bool) {
	e := s.find(documentID)
	if e == nil {
		return model.Document{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneDoc(e.doc), true
}

func (s *Store) find(documentID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[documentID]
}

func cloneDoc(d model.Document) model.Document {
	d.Content = deepClone(d.Content)
	return d
}

// ApplyResult is the outcome of a successful ApplyOperation call.
type ApplyResult struct {
	Revision  int
	Operation model.Operation
}

// ApplyOperation applies a single client-authored operation to a document.
// opInput.Path, opInput.Type, opInput.ClientID and opInput.UserID must be
// set by the caller; ID, Timestamp and Revision are assigned here.
//
// Errors are one of model.ErrNotFound, model.ErrLocked, model.ErrPath, or
// model.ErrMutate (spec §7); no other error is ever returned.
func (s *Store) ApplyOperation(documentID string, opInput model.Operation) (ApplyResult, error) {
	e := s.find(documentID)
	if e == nil {
		return ApplyResult{}, fmt.Errorf("document %q: %w", documentID, model.ErrNotFound)
	}

	switch opInput.Type {
	case model.OpInsert, model.OpDelete, model.OpUpdate:
	default:
		return ApplyResult{}, fmt.Errorf("unknown operation type %q: %w", opInput.Type, model.ErrMutate)
	}
	if opInput.Path == "" {
		return ApplyResult{}, fmt.Errorf("empty path: %w", model.ErrPath)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if owner, locked := s.locks.Check(lockKey(documentID, opInput.Path)); locked && owner != opInput.UserID {
		return ApplyResult{}, fmt.Errorf("path %q held by %q: %w", opInput.Path, owner, model.ErrLocked)
	}

	op := opInput
	op.ID = uuid.NewString()
	op.Timestamp = time.Now().UnixMilli()
	op.Revision = e.doc.Revision

	newContent, err := mutator.Apply(e.doc.Content, &op)
	if err != nil {
		return ApplyResult{}, err
	}

	e.doc.Content = newContent
	e.doc.Revision++
	e.doc.Hash = digest(newContent)
	e.ops = append(e.ops, op)
	e.lastModified = time.Now()

	return ApplyResult{Revision: e.doc.Revision, Operation: op}, nil
}

// GetOperationHistory returns operations in [from, to) for documentID. to
// defaults to the log's current length when nil. Out-of-range bounds are
// clamped rather than erroring.
func (s *Store) GetOperationHistory(documentID string, from int, to *int) ([]model.Operation, error) {
	e := s.find(documentID)
	if e == nil {
		return nil, fmt.Errorf("document %q: %w", documentID, model.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	length := len(e.ops)
	end := length
	if to != nil {
		end = *to
	}
	start := clampInt(from, 0, length)
	end = clampInt(end, start, length)

	out := make([]model.Operation, end-start)
	copy(out, e.ops[start:end])
	return out, nil
}

// CreateSnapshot deep-clones the current content and captures revision and
// hash. userID is the requesting caller, recorded as the snapshot's author.
func (s *Store) CreateSnapshot(documentID, userID string) (model.Snapshot, bool) {
	e := s.find(documentID)
	if e == nil {
		return model.Snapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return model.Snapshot{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Revision:   e.doc.Revision,
		Content:    deepClone(e.doc.Content),
		Operations: len(e.ops),
		Hash:       e.doc.Hash,
		CreatedBy:  userID,
		CreatedAt:  time.Now(),
	}, true
}

// DetectConflicts reports true iff v1 and v2 disagree on both hash and
// revision. Matching on either alone is not a conflict: equal hash with
// differing revision is a false positive the digest can't rule out (see
// §6), and equal revision with differing hash cannot happen for the same
// document under this store's linearizability guarantee.
func DetectConflicts(v1, v2 model.Snapshot) bool {
	return v1.Hash != v2.Hash && v1.Revision != v2.Revision
}

// MergeVersions resolves two divergent snapshots of the same document by
// last-writer-wins on CreatedAt. This is intentionally simplistic (§9): the
// loser's content is discarded outright, there is no field-level merge, and
// clock skew across producers can flip the winner. Callers that need
// stronger convergence must add logical timestamps at the application
// layer; this store is not a CRDT.
func MergeVersions(v1, v2 model.Snapshot) model.Snapshot {
	winner := v1
	if v2.CreatedAt.After(v1.CreatedAt) {
		winner = v2
	}

	rev := v1.Revision
	if v2.Revision > rev {
		rev = v2.Revision
	}

	return model.Snapshot{
		ID:         uuid.NewString(),
		DocumentID: winner.DocumentID,
		Revision:   rev + 1,
		Content:    deepClone(winner.Content),
		Operations: winner.Operations,
		Hash:       digest(winner.Content),
		CreatedBy:  winner.CreatedBy,
		CreatedAt:  time.Now(),
	}
}

// Stats summarizes a single document for diagnostics and the stats HTTP
// route. ActiveSessionCount and DistinctActiveUsers come from the caller
// (the Session Registry owns session liveness, not the Document Store).
type Stats struct {
	DocumentID          string
	Revision            int
	OperationCount      int
	ActiveSessionCount  int
	DistinctActiveUsers int
	LastModified        time.Time
	ContentSizeBytes    int
}

// GetDocumentStats reports the document-owned figures plus whatever
// session-derived counts the caller supplies.
func (s *Store) GetDocumentStats(documentID string, activeSessions []model.EditSession) (Stats, error) {
	e := s.find(documentID)
	if e == nil {
		return Stats{}, fmt.Errorf("document %q: %w", documentID, model.ErrNotFound)
	}

	e.mu.Lock()
	revision := e.doc.Revision
	opCount := len(e.ops)
	lastModified := e.lastModified
	size := contentSize(e.doc.Content)
	e.mu.Unlock()

	distinctUsers := make(map[string]struct{}, len(activeSessions))
	for _, sess := range activeSessions {
		if sess.DocumentID == documentID {
			distinctUsers[sess.UserID] = struct{}{}
		}
	}

	return Stats{
		DocumentID:          documentID,
		Revision:            revision,
		OperationCount:      opCount,
		ActiveSessionCount:  len(activeSessions),
		DistinctActiveUsers: len(distinctUsers),
		LastModified:        lastModified,
		ContentSizeBytes:    size,
	}, nil
}

// ListDocumentIDs returns the ids of every document currently held open,
// for the host's persistence sweep and stats endpoint.
func (s *Store) ListDocumentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
