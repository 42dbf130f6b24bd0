// Package realtime implements the Realtime Server (spec §4.I): the
// per-connection state machine and wire-level dispatch for presence,
// channel membership, and event publish/subscribe. Document editing
// (Document Store, Session Registry, Lock Table) is the separate
// "editor-engine programmatic surface" spec §6 describes — exposed over
// HTTP in cmd/server, not over this socket. Grounded on the teacher's
// pkg/server/{server,connection,kolabpad}.go: one goroutine per
// connection, a buffered outbound channel pumped by a writer goroutine,
// and a accept-then-serve HTTP handler.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/kolabhq/tilepad/internal/protocol"
	"github.com/kolabhq/tilepad/pkg/channel"
	"github.com/kolabhq/tilepad/pkg/eventlog"
	"github.com/kolabhq/tilepad/pkg/logger"
	"github.com/kolabhq/tilepad/pkg/model"
	"github.com/kolabhq/tilepad/pkg/presence"
	"github.com/kolabhq/tilepad/pkg/session"
)

// Options configures connection timeouts and buffering. Zero values fall
// back to the spec defaults (protocol.DefaultPingInterval/Timeout, 16).
type Options struct {
	PingInterval        time.Duration
	PingTimeout         time.Duration
	BroadcastBufferSize int
	AcceptOrigin        string
}

// Server dispatches Realtime Server transport messages against the
// Presence Registry, Channel Router, and Event Log. It holds no document
// state of its own.
type Server struct {
	presence *presence.Registry
	channels *channel.Router
	events   *eventlog.Log
	sessions *session.Registry

	cfg Options

	mu   sync.RWMutex
	otps map[string]string // domain -> shared secret, see secret.go
}

// NewServer wires a Realtime Server against the shared engine components.
// sessions is optional (nil is fine) — it is only used by StartJanitor to
// reap stale edit sessions, and StartJanitor is a no-op without it.
func NewServer(pres *presence.Registry, channels *channel.Router, events *eventlog.Log, sessions *session.Registry, cfg Options) *Server {
	return &Server{
		presence: pres,
		channels: channels,
		events:   events,
		sessions: sessions,
		cfg:      cfg,
		otps:     make(map[string]string),
	}
}

// SetDomainSecret gates channel:join for domain behind otp. An empty otp
// removes the gate. This is the supplemental, lighter-weight analogue of
// the teacher's per-document OTP (see secret.go).
func (s *Server) SetDomainSecret(domain, otp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if otp == "" {
		delete(s.otps, domain)
		return
	}
	s.otps[domain] = otp
}

func (s *Server) checkDomainSecret(domain, otp string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want, gated := s.otps[domain]
	return !gated || want == otp
}

// ServeHTTP upgrades an HTTP request to a WebSocket and drives the
// connection until it closes. Mount at whatever route the host chooses
// (the teacher used /api/socket/{id}; Tilepad's realtime channel is
// document-agnostic, so a single route is enough).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	acceptOpts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionDisabled}
	if s.cfg.AcceptOrigin != "" && s.cfg.AcceptOrigin != "*" {
		acceptOpts.OriginPatterns = []string{s.cfg.AcceptOrigin}
	}

	wsConn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		logger.Error("websocket upgrade failed: %v", err)
		return
	}
	defer wsConn.Close(websocket.StatusInternalError, "")

	conn := newConnection(s, uuid.NewString(), wsConn)
	logger.Info("connection accepted: %s", conn.id)

	if err := conn.Serve(r.Context()); err != nil {
		logger.Info("connection %s closed: %v", conn.id, err)
	}
	wsConn.Close(websocket.StatusNormalClosure, "")
}

// Broadcast publishes evt on channelName via the Channel Router and
// appends it to the Event Log. Used both by inbound event:publish
// handling and by the Event Facade (pkg/events) for server-originated
// notifications.
func (s *Server) Broadcast(channelName string, evt model.Event) int {
	evt.Channel = &channelName
	s.events.Append(evt)
	return s.channels.Broadcast(channelName, evt)
}

// BroadcastGlobal is Broadcast against model.GlobalChannel, except the
// stored/delivered event's Channel field is left nil (global is implicit,
// spec §3).
func (s *Server) BroadcastGlobal(evt model.Event) int {
	s.events.Append(evt)
	return s.channels.Broadcast(model.GlobalChannel, evt)
}

func (s *Server) broadcastUserLeft(userID string) {
	evt := model.Event{
		Type:      model.EventUserLeft,
		Data:      map[string]any{"userId": userID},
		UserID:    userID,
		Timestamp: time.Now().UnixMilli(),
	}
	s.BroadcastGlobal(evt)
}

func (s *Server) handleMessage(c *Connection, env protocol.Envelope) {
	switch env.Name {
	case protocol.MsgUserJoin:
		s.handleUserJoin(c, env)
	case protocol.MsgChannelJoin:
		s.handleChannelJoin(c, env)
	case protocol.MsgChannelLeave:
		s.handleChannelLeave(c, env)
	case protocol.MsgEventPublish:
		s.handleEventPublish(c, env)
	case protocol.MsgUserStatus:
		s.handleUserStatus(c, env)
	case protocol.MsgUsersList:
		s.handleUsersList(c, env)
	default:
		logger.Debug("connection %s sent unrecognized message %q", c.id, env.Name)
	}
}

func (s *Server) handleUserJoin(c *Connection, env protocol.Envelope) {
	var payload protocol.UserJoinPayload
	if err := env.Decode(&payload); err != nil || payload.UserID == "" {
		logger.Debug("connection %s: malformed user:join", c.id)
		return
	}

	c.mu.Lock()
	c.userID = payload.UserID
	c.username = payload.Username
	c.mu.Unlock()
	c.setState(stateLive)

	s.presence.OnJoin(payload.UserID, payload.Username)

	evt := model.Event{
		Type:      model.EventUserJoined,
		Data:      map[string]any{"userId": payload.UserID, "username": payload.Username},
		UserID:    payload.UserID,
		Timestamp: time.Now().UnixMilli(),
	}
	s.BroadcastGlobal(evt)

	snapshot, err := protocol.Encode(protocol.MsgUsersActive, s.presence.List())
	if err == nil {
		c.enqueue(snapshot)
	}
}

func (s *Server) handleChannelJoin(c *Connection, env protocol.Envelope) {
	domain, otp, ok := decodeChannelPayload(env)
	if !ok {
		return
	}
	if !s.checkDomainSecret(domain, otp) {
		logger.Debug("connection %s denied channel:join for %q: bad secret", c.id, domain)
		return
	}
	s.channels.Join(model.DomainChannel(domain), c)
}

func (s *Server) handleChannelLeave(c *Connection, env protocol.Envelope) {
	domain, _, ok := decodeChannelPayload(env)
	if !ok {
		return
	}
	s.channels.Leave(model.DomainChannel(domain), c)
}

type channelPayload struct {
	Domain string `json:"domain"`
	OTP    string `json:"otp,omitempty"`
}

// decodeChannelPayload accepts either a bare JSON string (the §6 base
// contract) or a {domain, otp} object (the OTP-gated supplement).
func decodeChannelPayload(env protocol.Envelope) (domain, otp string, ok bool) {
	if s, err := env.DecodeString(); err == nil {
		return s, "", s != ""
	}
	var obj channelPayload
	if err := env.Decode(&obj); err != nil || obj.Domain == "" {
		return "", "", false
	}
	return obj.Domain, obj.OTP, true
}

func (s *Server) handleEventPublish(c *Connection, env protocol.Envelope) {
	userID, _, bound := c.boundUser()
	if !bound {
		logger.Debug("connection %s published event before user:join", c.id)
		return
	}

	var evt model.Event
	if err := env.Decode(&evt); err != nil {
		logger.Debug("connection %s: malformed event:publish", c.id)
		return
	}

	evt.UserID = userID
	evt.Timestamp = time.Now().UnixMilli()

	channelName := model.GlobalChannel
	if evt.Channel != nil && *evt.Channel != "" {
		channelName = *evt.Channel
	}
	s.Broadcast(channelName, evt)
}

func (s *Server) handleUserStatus(c *Connection, env protocol.Envelope) {
	userID, _, bound := c.boundUser()
	if !bound {
		return
	}

	status, err := env.DecodeString()
	if err != nil || status == "" {
		return
	}

	rec, ok := s.presence.SetStatus(userID, model.PresenceStatus(status))
	if !ok {
		return
	}

	evt := model.Event{
		Type:      model.EventUserStatusChanged,
		Data:      map[string]any{"userId": userID, "status": string(rec.Status)},
		UserID:    userID,
		Timestamp: time.Now().UnixMilli(),
	}
	s.BroadcastGlobal(evt)
}

func (s *Server) handleUsersList(c *Connection, env protocol.Envelope) {
	reply, err := protocol.EncodeAck(protocol.MsgUsersActive, s.presence.List(), env.Ack)
	if err != nil {
		return
	}
	c.enqueue(reply)
}

// ConnectionCount returns how many connections are currently subscribed
// to the global channel, i.e. every live connection.
func (s *Server) ConnectionCount() int {
	return len(s.channels.Members(model.GlobalChannel))
}

// StartJanitor periodically reaps stale edit sessions (spec §5's "session
// reaper runs on a timer"). Path locks need no sweeper — expiry is lazy
// on access (spec §4.C) — so this loop only ever touches the Session
// Registry. A no-op if the server was built without one.
func (s *Server) StartJanitor(ctx context.Context, interval, sessionTimeout time.Duration) {
	if s.sessions == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.CleanupOldSessions(sessionTimeout); n > 0 {
				logger.Debug("janitor reaped %d stale session(s)", n)
			}
		}
	}
}
