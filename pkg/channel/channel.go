// Package channel implements the Channel Router (spec §4.G): named fan-out
// sets connections subscribe to. Every connection implicitly belongs to
// the global channel on accept; domain channels are joined explicitly.
// Membership queries are O(1); broadcast is O(members).
package channel

import (
	"sync"

	"github.com/kolabhq/tilepad/pkg/model"
)

// Member is anything the router can deliver an event to. The Realtime
// Server's connection type implements this; tests can use a plain func.
type Member interface {
	ID() string
	Deliver(evt model.Event)
}

// set is a channel's membership: a lookup map plus the order members
// joined in, since Go map iteration order is random and Broadcast must
// not be.
type set struct {
	members map[string]Member
	order   []string
}

// Router owns channel membership sets, keyed by channel name.
type Router struct {
	mu       sync.RWMutex
	channels map[string]*set
}

// New creates an empty Channel Router.
func New() *Router {
	return &Router{channels: make(map[string]*set)}
}

// Join subscribes a member to channel. Idempotent.
func (r *Router) Join(channelName string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.channels[channelName]
	if !ok {
		s = &set{members: make(map[string]Member)}
		r.channels[channelName] = s
	}
	if _, already := s.members[m.ID()]; !already {
		s.order = append(s.order, m.ID())
	}
	s.members[m.ID()] = m
}

// Leave unsubscribes a member from channel. Idempotent; leaving a channel
// the member was never in, or one that doesn't exist, succeeds silently.
func (r *Router) Leave(channelName string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.channels[channelName]
	if !ok {
		return
	}
	r.remove(channelName, s, m.ID())
}

// LeaveAll removes a member from every channel it belongs to, used when a
// connection disconnects.
func (r *Router) LeaveAll(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, s := range r.channels {
		if _, ok := s.members[m.ID()]; ok {
			r.remove(name, s, m.ID())
		}
	}
}

// remove drops id from s, pruning the channel entirely once empty. Caller
// holds r.mu.
func (r *Router) remove(channelName string, s *set, id string) {
	delete(s.members, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if len(s.members) == 0 {
		delete(r.channels, channelName)
	}
}

// Broadcast delivers evt to every current member of channel and reports
// how many received it. Delivery to each member happens synchronously and
// in registration order so that, for a single channel, broadcasts are
// observed by every live member in the order the caller issued them (spec
// §5's ordering guarantee); Member.Deliver is expected to be non-blocking
// (e.g. a buffered per-connection outbound queue).
func (r *Router) Broadcast(channelName string, evt model.Event) int {
	r.mu.RLock()
	s, ok := r.channels[channelName]
	var snapshot []Member
	if ok {
		snapshot = make([]Member, 0, len(s.order))
		for _, id := range s.order {
			snapshot = append(snapshot, s.members[id])
		}
	}
	r.mu.RUnlock()

	for _, m := range snapshot {
		m.Deliver(evt)
	}
	return len(snapshot)
}

// Members returns the ids currently subscribed to channel, in the order
// they joined.
func (r *Router) Members(channelName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.channels[channelName]
	if !ok {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// IsMember reports whether m currently belongs to channel, an O(1) lookup.
func (r *Router) IsMember(channelName string, m Member) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.channels[channelName]
	if !ok {
		return false
	}
	_, ok = s.members[m.ID()]
	return ok
}
