package realtime

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kolabhq/tilepad/internal/protocol"
	"github.com/kolabhq/tilepad/pkg/logger"
	"github.com/kolabhq/tilepad/pkg/model"
)

// connState is the per-connection state machine (spec §4.I): Accepted ->
// Identified -> Live -> Draining -> Closed.
type connState int32

const (
	stateAccepted connState = iota
	stateIdentified
	stateLive
	stateDraining
	stateClosed
)

// Connection is a single client's WebSocket session. It implements
// channel.Member so the Channel Router can deliver events to it directly.
type Connection struct {
	id     string
	conn   *websocket.Conn
	server *Server

	ctx    context.Context
	cancel context.CancelFunc

	outbox chan protocol.Envelope

	mu       sync.Mutex
	state    connState
	userID   string
	username string
}

func newConnection(srv *Server, id string, wsConn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	bufSize := srv.cfg.BroadcastBufferSize
	if bufSize <= 0 {
		bufSize = 16
	}
	return &Connection{
		id:     id,
		conn:   wsConn,
		server: srv,
		ctx:    ctx,
		cancel: cancel,
		outbox: make(chan protocol.Envelope, bufSize),
		state:  stateAccepted,
	}
}

// ID identifies this connection for channel membership; satisfies
// channel.Member.
func (c *Connection) ID() string { return c.id }

// Deliver enqueues an event for this connection's writer goroutine.
// Non-blocking: a slow consumer drops events rather than stalling the
// broadcaster (spec §5: "a broadcast never blocks an apply").
func (c *Connection) Deliver(evt model.Event) {
	env, err := protocol.Encode(protocol.MsgRealtimeEvent, evt)
	if err != nil {
		return
	}
	c.enqueue(env)
}

func (c *Connection) enqueue(env protocol.Envelope) {
	select {
	case c.outbox <- env:
	default:
		logger.Warn("dropping %q to slow connection %s", env.Name, c.id)
	}
}

func (c *Connection) boundUser() (userID, username string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.username, c.userID != ""
}

func (c *Connection) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) getState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Serve drives the connection lifecycle until the transport closes or ctx
// is cancelled: writer pump, pinger, and inbound message loop.
func (c *Connection) Serve(ctx context.Context) error {
	defer c.cleanup()

	c.server.channels.Join(model.GlobalChannel, c)

	established, err := protocol.Encode(protocol.MsgConnectionEstablished,
		protocol.ConnectionEstablishedPayload{ConnectionID: c.id})
	if err != nil {
		return err
	}
	c.enqueue(established)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.writePump() }()
	go func() { defer wg.Done(); c.pinger() }()

	err = c.readLoop(ctx)
	c.cancel()
	wg.Wait()
	return err
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case env, ok := <-c.outbox:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, c.conn, env)
			cancel()
			if err != nil {
				logger.Info("write failed for connection %s, closing: %v", c.id, err)
				c.cancel()
				return
			}
		}
	}
}

func (c *Connection) pinger() {
	interval := c.server.cfg.PingInterval
	timeout := c.server.cfg.PingTimeout
	if interval <= 0 {
		interval = protocol.DefaultPingInterval
	}
	if timeout <= 0 {
		timeout = protocol.DefaultPingTimeout
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, timeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Info("ping timeout, dropping connection %s", c.id)
				c.cancel()
				return
			}
		}
	}
}

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var env protocol.Envelope
		if err := wsjson.Read(c.ctx, c.conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}

		c.server.handleMessage(c, env)
	}
}

func (c *Connection) cleanup() {
	c.setState(stateDraining)
	c.server.channels.LeaveAll(c)

	userID, _, bound := c.boundUser()
	if bound {
		outcome := c.server.presence.OnLeave(userID)
		if outcome.Removed {
			c.server.broadcastUserLeft(userID)
		}
	}

	close(c.outbox)
	c.setState(stateClosed)
}
