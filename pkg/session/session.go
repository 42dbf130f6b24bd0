// Package session implements the Session Registry (spec §4.E): per-client
// editing contexts keyed by clientId, tracking cursor position and
// activity so the idle reaper and presence UI can tell who's actually here.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolabhq/tilepad/pkg/model"
)

// DefaultIdle is the spec default for SESSION_IDLE_MS.
const DefaultIdle = 30 * time.Second

// Registry holds one EditSession per clientId. CreateSession always
// overwrites any prior session for that clientId (spec §9's Open Question:
// a reconnect with the same clientId recreates rather than resumes).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]model.EditSession
	idle     time.Duration
	now      func() time.Time
}

// New creates a Session Registry with the given idle timeout.
func New(idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Registry{
		sessions: make(map[string]model.EditSession),
		idle:     idle,
		now:      time.Now,
	}
}

// CreateSession starts (or restarts) editing context for clientId.
func (r *Registry) CreateSession(userID, clientID, documentID string) model.EditSession {
	now := r.now()
	sess := model.EditSession{
		SessionID:      uuid.NewString(),
		UserID:         userID,
		ClientID:       clientID,
		DocumentID:     documentID,
		StartTime:      now,
		LastActivity:   now,
		CursorPosition: 0,
		IsActive:       true,
	}

	r.mu.Lock()
	r.sessions[clientID] = sess
	r.mu.Unlock()

	return sess
}

// UpdateSessionCursor refreshes lastActivity and cursor position. Returns
// false if clientID has no session.
func (r *Registry) UpdateSessionCursor(clientID string, pos int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[clientID]
	if !ok {
		return false
	}
	sess.CursorPosition = pos
	sess.LastActivity = r.now()
	r.sessions[clientID] = sess
	return true
}

// Touch refreshes lastActivity without moving the cursor, for any other
// inbound activity that should keep a session alive.
func (r *Registry) Touch(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[clientID]
	if !ok {
		return false
	}
	sess.LastActivity = r.now()
	r.sessions[clientID] = sess
	return true
}

// EndSession marks a session inactive. The record is retained for audit
// until a later cleanup pass reaps it.
func (r *Registry) EndSession(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[clientID]
	if !ok {
		return false
	}
	sess.IsActive = false
	r.sessions[clientID] = sess
	return true
}

// GetActiveSessions returns sessions for documentID that are active and
// within the idle window. A session exactly at the idle threshold is
// considered expired (spec §8 boundary behavior).
func (r *Registry) GetActiveSessions(documentID string) []model.EditSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var out []model.EditSession
	for _, sess := range r.sessions {
		if sess.DocumentID != documentID {
			continue
		}
		if r.isLive(sess, now) {
			out = append(out, sess)
		}
	}
	return out
}

func (r *Registry) isLive(sess model.EditSession, now time.Time) bool {
	return sess.IsActive && now.Sub(sess.LastActivity) < r.idle
}

// CleanupOldSessions removes sessions whose lastActivity is older than
// timeout, active or not. Meant to be invoked on a timer by the host
// (spec §4.E, §5's "Cancellation and timeouts").
func (r *Registry) CleanupOldSessions(timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for clientID, sess := range r.sessions {
		if now.Sub(sess.LastActivity) >= timeout {
			delete(r.sessions, clientID)
			removed++
		}
	}
	return removed
}

// EndByClient removes a session outright, used when a connection drops and
// we don't want to wait for the reaper (spec §5: "A connection drop is
// treated as cooperative cancellation").
func (r *Registry) EndByClient(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, clientID)
}
