// Package presence implements the Presence Registry (spec §4.F): userId ->
// aggregated presence across multiple connected devices. The in-process
// registry is the source of truth; an optional Replicator lets a
// deployment fan presence mutations out to other server processes (see
// replicator.go), mirroring the best-effort, non-blocking pattern the
// examples pack uses for cross-node presence (Eggwite-Tether's
// PresenceStore.AddReplicator).
package presence

import (
	"sync"
	"time"

	"github.com/kolabhq/tilepad/pkg/model"
)

// LeaveOutcome tells the caller whether a leave removed the record
// entirely, so the Realtime Server knows whether to broadcast user:left.
type LeaveOutcome struct {
	Removed          bool
	ConnectedDevices int
}

// Registry aggregates presence across devices for each user.
type Registry struct {
	mu          sync.RWMutex
	records     map[string]model.PresenceRecord
	replicators []Replicator
	now         func() time.Time
}

// New creates an empty Presence Registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]model.PresenceRecord),
		now:     time.Now,
	}
}

// AddReplicator registers a best-effort cross-node publisher. Calls to it
// are made asynchronously so a slow or unreachable replicator never blocks
// the in-memory hot path.
func (r *Registry) AddReplicator(rep Replicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicators = append(r.replicators, rep)
}

// OnJoin registers a device connecting for userID. The first device for a
// user creates the record online; subsequent devices just bump the count.
func (r *Registry) OnJoin(userID, username string) model.PresenceRecord {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if !ok {
		rec = model.PresenceRecord{UserID: userID, Username: username}
	}
	rec.ConnectedDevices++
	rec.Status = model.StatusOnline
	rec.LastSeen = r.now()
	if username != "" {
		rec.Username = username
	}
	r.records[userID] = rec
	r.mu.Unlock()

	r.replicate(Mutation{UserID: userID, Record: rec})
	return rec
}

// OnLeave decrements a device for userID, floored at 0. At 0 the record is
// removed and Removed=true is returned.
func (r *Registry) OnLeave(userID string) LeaveOutcome {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if !ok {
		r.mu.Unlock()
		return LeaveOutcome{Removed: true, ConnectedDevices: 0}
	}

	rec.ConnectedDevices--
	if rec.ConnectedDevices <= 0 {
		delete(r.records, userID)
		r.mu.Unlock()
		r.replicate(Mutation{UserID: userID, Removed: true})
		return LeaveOutcome{Removed: true, ConnectedDevices: 0}
	}

	rec.LastSeen = r.now()
	r.records[userID] = rec
	r.mu.Unlock()

	r.replicate(Mutation{UserID: userID, Record: rec})
	return LeaveOutcome{Removed: false, ConnectedDevices: rec.ConnectedDevices}
}

// SetStatus updates status and lastSeen for an already-present user. A
// no-op (ok=false) if the user has no record (they aren't connected).
func (r *Registry) SetStatus(userID string, status model.PresenceStatus) (model.PresenceRecord, bool) {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if !ok {
		r.mu.Unlock()
		return model.PresenceRecord{}, false
	}
	rec.Status = status
	rec.LastSeen = r.now()
	r.records[userID] = rec
	r.mu.Unlock()

	r.replicate(Mutation{UserID: userID, Record: rec})
	return rec, true
}

// SetCurrentAction sets the optional activity label (e.g. "searching",
// "typing in block 3") without changing status.
func (r *Registry) SetCurrentAction(userID string, action *string) (model.PresenceRecord, bool) {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if !ok {
		r.mu.Unlock()
		return model.PresenceRecord{}, false
	}
	rec.CurrentAction = action
	rec.LastSeen = r.now()
	r.records[userID] = rec
	r.mu.Unlock()
	return rec, true
}

// List returns every current presence record.
func (r *Registry) List() []model.PresenceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.PresenceRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

func (r *Registry) replicate(m Mutation) {
	r.mu.RLock()
	reps := make([]Replicator, len(r.replicators))
	copy(reps, r.replicators)
	r.mu.RUnlock()

	for _, rep := range reps {
		rep := rep
		go func() { _ = rep.Publish(m) }()
	}
}
