// Package eventlog implements the Event Log (spec §4.H): a bounded,
// in-memory, time-ordered record of published realtime events, replayable
// from any point via Since. Grounded on rig's server.EventLog (sequence
// counter, notify-channel wakeup, sort.Search-based replay), adapted from
// an unbounded sequence log to a capacity-bounded ring so long-lived
// deployments can't grow it without limit (spec's MAX_EVENT_LOG).
package eventlog

import (
	"sort"
	"sync"

	"github.com/kolabhq/tilepad/pkg/model"
)

// Log is a bounded, append-only record of events ordered by arrival.
type Log struct {
	mu       sync.RWMutex
	events   []model.Event
	capacity int
	dropped  uint64
}

// New creates an Event Log holding at most capacity events. Once full, the
// oldest event is evicted on every append (spec §4.H's MAX_EVENT_LOG).
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Log{capacity: capacity}
}

// Append records an event, evicting the oldest entry if the log is at
// capacity. Timestamp must already be set by the caller (the Event Facade
// stamps it); Append does not mutate the event.
func (l *Log) Append(evt model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) >= l.capacity {
		copy(l.events, l.events[1:])
		l.events = l.events[:len(l.events)-1]
		l.dropped++
	}
	l.events = append(l.events, evt)
}

// Since returns every event with Timestamp > t (milliseconds since epoch),
// in arrival order. Events share the log's arrival order, which is also
// timestamp order for a single-process log, so a binary search over
// timestamps is sound.
func (l *Log) Since(t int64) []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp > t
	})
	if i >= len(l.events) {
		return nil
	}
	out := make([]model.Event, len(l.events)-i)
	copy(out, l.events[i:])
	return out
}

// All returns every event currently retained, oldest first.
func (l *Log) All() []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports how many events the log currently retains.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Dropped reports how many events have been evicted for capacity since the
// log was created, for diagnostics.
func (l *Log) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
