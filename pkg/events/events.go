// Package events implements the Event Facade (spec §4.J): a stateless
// producer API other parts of the host application call to announce tile
// and inference activity without depending on the Realtime Server's wire
// protocol directly. If no Realtime Server is wired in, every producer
// call is a no-op (log only) — event producers never see transport-layer
// errors (spec's failure model).
package events

import (
	"time"

	"github.com/kolabhq/tilepad/pkg/logger"
	"github.com/kolabhq/tilepad/pkg/model"
	"github.com/kolabhq/tilepad/pkg/realtime"
)

// Facade is the stateless producer API. A Facade built with a nil server
// (New(nil, ...)) behaves as "no Realtime Server running": every publish
// call is a no-op log line, per spec's failure model.
type Facade struct {
	server *realtime.Server
	log    *eventSource
}

// eventSource is anything that can answer reconnect catch-up queries;
// satisfied by *eventlog.Log and *presence.Registry respectively through
// the thin adapters passed to New.
type eventSource struct {
	since       func(t int64) []model.Event
	activeUsers func() []model.PresenceRecord
}

// New builds a bound Facade. sinceFn and activeUsersFn back
// getEventsSince/getActiveUsers; pass nil for either to disable that
// pass-through (it will return an empty slice).
func New(server *realtime.Server, sinceFn func(int64) []model.Event, activeUsersFn func() []model.PresenceRecord) *Facade {
	return &Facade{
		server: server,
		log:    &eventSource{since: sinceFn, activeUsers: activeUsersFn},
	}
}

func (f *Facade) publish(channelHint *string, evt model.Event) {
	if f.server == nil {
		logger.Debug("event facade: no realtime server bound, dropping %s", evt.Type)
		return
	}
	evt.Timestamp = time.Now().UnixMilli()
	if channelHint != nil && *channelHint != "" {
		f.server.Broadcast(model.DomainChannel(*channelHint), evt)
		return
	}
	f.server.BroadcastGlobal(evt)
}

// NotifyTileCreated announces a new tile. domain, if non-empty, scopes the
// broadcast to that domain channel instead of global.
func (f *Facade) NotifyTileCreated(tileID string, data map[string]any, userID, domain string) {
	f.notifyTile("created", tileID, data, userID, domain)
}

// NotifyTileUpdated announces a tile change.
func (f *Facade) NotifyTileUpdated(tileID string, data map[string]any, userID, domain string) {
	f.notifyTile("updated", tileID, data, userID, domain)
}

// NotifyTileDeleted announces tile removal.
func (f *Facade) NotifyTileDeleted(tileID, domain, userID string) {
	f.notifyTile("deleted", tileID, nil, userID, domain)
}

func (f *Facade) notifyTile(action, tileID string, data map[string]any, userID, domain string) {
	payload := map[string]any{"tileId": tileID}
	for k, v := range data {
		payload[k] = v
	}
	evt := model.Event{
		Type:   model.EventType("tile:" + action),
		Data:   payload,
		UserID: userID,
	}
	f.publish(domainPtr(domain), evt)
}

// NotifyInferenceSaved announces a saved inference result.
func (f *Facade) NotifyInferenceSaved(tileID string, data map[string]any, userID, domain string) {
	payload := map[string]any{"tileId": tileID}
	for k, v := range data {
		payload[k] = v
	}
	evt := model.Event{
		Type:   model.EventInferenceSaved,
		Data:   payload,
		UserID: userID,
	}
	f.publish(domainPtr(domain), evt)
}

// UserAction is the input to PublishUserAction.
type UserAction struct {
	UserID  string
	Action  string
	Domain  string
	Details map[string]any
}

// PublishUserAction announces an arbitrary named user action, optionally
// scoped to a domain.
func (f *Facade) PublishUserAction(a UserAction) {
	payload := map[string]any{"action": a.Action}
	for k, v := range a.Details {
		payload[k] = v
	}
	evt := model.Event{
		Type:   model.EventUserAction,
		Data:   payload,
		UserID: a.UserID,
	}
	f.publish(domainPtr(a.Domain), evt)
}

// BroadcastSearchActivity sends a fire-and-forget awareness ping that
// userID is searching for query.
func (f *Facade) BroadcastSearchActivity(userID, query, domain string) {
	f.activityUpdate(userID, "searching", map[string]any{"query": query}, domain)
}

// BroadcastInferenceActivity sends a fire-and-forget awareness ping that
// userID is running inference over question.
func (f *Facade) BroadcastInferenceActivity(userID, question, domain string) {
	f.activityUpdate(userID, "inferring", map[string]any{"question": question}, domain)
}

func (f *Facade) activityUpdate(userID, kind string, detail map[string]any, domain string) {
	payload := map[string]any{"kind": kind}
	for k, v := range detail {
		payload[k] = v
	}
	evt := model.Event{
		Type:   model.EventActivityUpdate,
		Data:   payload,
		UserID: userID,
	}
	f.publish(domainPtr(domain), evt)
}

// NotifyDocumentOperation broadcasts a committed document edit so other
// connections see it live (the "later layer" spec §4.D defers change
// notification to). domain is typically the documentId itself.
func (f *Facade) NotifyDocumentOperation(domain string, op model.Operation) {
	evt := model.Event{
		Type:   model.EventDocumentOperation,
		Data:   map[string]any{"operation": op},
		UserID: op.UserID,
	}
	f.publish(domainPtr(domain), evt)
}

// GetEventsSince is a pass-through to the bound Event Log, for reconnect
// catch-up. Returns nil if no log was bound.
func (f *Facade) GetEventsSince(timestamp int64) []model.Event {
	if f.log.since == nil {
		return nil
	}
	return f.log.since(timestamp)
}

// GetActiveUsers is a pass-through to the bound Presence Registry.
// Returns nil if no registry was bound.
func (f *Facade) GetActiveUsers() []model.PresenceRecord {
	if f.log.activeUsers == nil {
		return nil
	}
	return f.log.activeUsers()
}

func domainPtr(domain string) *string {
	if domain == "" {
		return nil
	}
	return &domain
}
