// Package model defines the data types shared across the collaborative
// editing engine: documents, operations, sessions, locks, presence and
// realtime events. Components own these types; model only describes their
// shape so packages that need to talk about a Document or an Operation
// don't have to import each other.
package model

import "time"

// OperationType names the single mutation kinds the Content Mutator
// understands. See pkg/mutator.
type OperationType string

const (
	OpInsert OperationType = "insert"
	OpDelete OperationType = "delete"
	OpUpdate OperationType = "update"
)

// Operation is a single edit authored by a client against a document
// revision. Path is a dotted sequence of mapping keys or array indices,
// e.g. "blocks.3.text". Position/Length are only meaningful for
// string/sequence targets; Value/OldValue are opaque JSON-shaped values.
type Operation struct {
	ID        string        `json:"id"`
	ClientID  string        `json:"clientId"`
	UserID    string        `json:"userId"`
	Type      OperationType `json:"type"`
	Path      string        `json:"path"`
	Value     any           `json:"value,omitempty"`
	OldValue  any           `json:"oldValue,omitempty"`
	Position  *int          `json:"position,omitempty"`
	Length    *int          `json:"length,omitempty"`
	Timestamp int64         `json:"timestamp"`
	Revision  int           `json:"revision"`
}

// Document is the mutable unit the engine serializes edits against.
type Document struct {
	ID        string    `json:"documentId"`
	Revision  int       `json:"revision"`
	Content   any       `json:"content"`
	Hash      string    `json:"hash"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is an immutable, deep-cloned copy of a document at a revision.
type Snapshot struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Revision   int       `json:"revision"`
	Content    any       `json:"content"`
	Operations int       `json:"operationCount"`
	Hash       string    `json:"hash"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EditSession is a per-(clientId, documentId) editing context.
type EditSession struct {
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId"`
	ClientID       string    `json:"clientId"`
	DocumentID     string    `json:"documentId"`
	StartTime      time.Time `json:"startTime"`
	LastActivity   time.Time `json:"lastActivity"`
	CursorPosition int       `json:"cursorPosition"`
	IsActive       bool      `json:"isActive"`
}

// PathLock is an exclusive, time-bounded right to mutate a path.
type PathLock struct {
	Path       string    `json:"path"`
	UserID     string    `json:"userId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	TTL        time.Duration `json:"-"`
}

// PresenceStatus is a user's aggregated liveness state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusIdle    PresenceStatus = "idle"
	StatusOffline PresenceStatus = "offline"
)

// PresenceRecord aggregates a user's presence across connected devices.
type PresenceRecord struct {
	UserID           string         `json:"userId"`
	Username         string         `json:"username"`
	Status           PresenceStatus `json:"status"`
	CurrentAction    *string        `json:"currentAction,omitempty"`
	LastSeen         time.Time      `json:"lastSeen"`
	ConnectedDevices int            `json:"connectedDevices"`
}

// EventType enumerates the kinds of realtime events the bus fans out.
type EventType string

const (
	EventTileCreated       EventType = "tile:created"
	EventTileUpdated       EventType = "tile:updated"
	EventTileDeleted       EventType = "tile:deleted"
	EventInferenceSaved    EventType = "inference:saved"
	EventUserJoined        EventType = "user:joined"
	EventUserLeft          EventType = "user:left"
	EventUserSearching     EventType = "user:searching"
	EventUserInferring     EventType = "user:inferring"
	EventUserStatusChanged EventType = "user:status:changed"
	EventUserAction        EventType = "user:action"
	EventActivityUpdate    EventType = "activity:update"

	// EventDocumentOperation carries a committed Operation so other
	// connections editing the same document see it live. Not named in
	// spec.md's Event Facade method list directly, but required by
	// §4.D's "a later layer may emit a change event" and §6's ack-based
	// error propagation for applies arriving over the transport edge.
	EventDocumentOperation EventType = "document:operation"
)

// Event is a single published occurrence on the realtime bus.
type Event struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	UserID    string         `json:"userId"`
	Timestamp int64          `json:"timestamp"`
	Channel   *string        `json:"channel,omitempty"`
}

// GlobalChannel is the implicit channel every connection joins on accept.
const GlobalChannel = "global"

// DomainChannel names a domain-scoped channel, e.g. DomainChannel("physics")
// yields "domain:physics".
func DomainChannel(domain string) string {
	return "domain:" + domain
}
