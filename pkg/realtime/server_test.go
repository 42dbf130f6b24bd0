package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kolabhq/tilepad/internal/protocol"
	"github.com/kolabhq/tilepad/pkg/channel"
	"github.com/kolabhq/tilepad/pkg/eventlog"
	"github.com/kolabhq/tilepad/pkg/presence"
	"github.com/kolabhq/tilepad/pkg/session"
)

// testServer mirrors the teacher's testServer helper: a Realtime Server
// wired against fresh engine components, tuned for fast test timeouts.
func testServer() *Server {
	return NewServer(presence.New(), channel.New(), eventlog.New(100), session.New(time.Minute), Options{
		PingInterval:        time.Minute,
		PingTimeout:         time.Minute,
		BroadcastBufferSize: 16,
	})
}

func connectWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var env protocol.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return env
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, env protocol.Envelope) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, env); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestConnectionEstablishedOnAccept(t *testing.T) {
	srv := testServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := connectWS(t, ts)
	env := readEnvelope(t, conn)
	if env.Name != protocol.MsgConnectionEstablished {
		t.Fatalf("expected connection:established, got %q", env.Name)
	}
}

func TestUserJoinBroadcastsAndSnapshotsPresence(t *testing.T) {
	srv := testServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn1 := connectWS(t, ts)
	readEnvelope(t, conn1) // connection:established

	env, _ := protocol.Encode(protocol.MsgUserJoin, protocol.UserJoinPayload{UserID: "u1", Username: "Alice"})
	sendEnvelope(t, conn1, env)

	userJoined := readEnvelope(t, conn1) // global broadcast of user:joined
	if userJoined.Name != protocol.MsgRealtimeEvent {
		t.Fatalf("expected realtime:event, got %q", userJoined.Name)
	}

	snapshot := readEnvelope(t, conn1) // users:active snapshot
	if snapshot.Name != protocol.MsgUsersActive {
		t.Fatalf("expected users:active, got %q", snapshot.Name)
	}
}

func TestSecondUserJoinNotifiesFirst(t *testing.T) {
	srv := testServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn1 := connectWS(t, ts)
	readEnvelope(t, conn1)
	env, _ := protocol.Encode(protocol.MsgUserJoin, protocol.UserJoinPayload{UserID: "u1", Username: "Alice"})
	sendEnvelope(t, conn1, env)
	readEnvelope(t, conn1) // user:joined for self
	readEnvelope(t, conn1) // users:active snapshot

	conn2 := connectWS(t, ts)
	readEnvelope(t, conn2)
	env2, _ := protocol.Encode(protocol.MsgUserJoin, protocol.UserJoinPayload{UserID: "u2", Username: "Bob"})
	sendEnvelope(t, conn2, env2)

	notified := readEnvelope(t, conn1)
	if notified.Name != protocol.MsgRealtimeEvent {
		t.Fatalf("expected conn1 to see u2's join broadcast, got %q", notified.Name)
	}
}

func TestChannelJoinThenEventPublishReachesMember(t *testing.T) {
	srv := testServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := connectWS(t, ts)
	readEnvelope(t, conn)

	joinUser, _ := protocol.Encode(protocol.MsgUserJoin, protocol.UserJoinPayload{UserID: "u1", Username: "Alice"})
	sendEnvelope(t, conn, joinUser)
	readEnvelope(t, conn) // user:joined
	readEnvelope(t, conn) // users:active

	channelJoin, _ := protocol.Encode(protocol.MsgChannelJoin, "physics")
	sendEnvelope(t, conn, channelJoin)

	publish, _ := protocol.Encode(protocol.MsgEventPublish, map[string]any{
		"type":    "tile:created",
		"data":    map[string]any{"tileId": "t1"},
		"channel": "domain:physics",
	})
	sendEnvelope(t, conn, publish)

	got := readEnvelope(t, conn)
	if got.Name != protocol.MsgRealtimeEvent {
		t.Fatalf("expected realtime:event for published tile, got %q", got.Name)
	}
}

func TestEventPublishBeforeUserJoinIsIgnored(t *testing.T) {
	srv := testServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := connectWS(t, ts)
	readEnvelope(t, conn)

	publish, _ := protocol.Encode(protocol.MsgEventPublish, map[string]any{"type": "tile:created"})
	sendEnvelope(t, conn, publish)

	// Nothing should arrive; confirm no crash by sending a harmless
	// users:list request afterward and getting a normal reply.
	list, _ := protocol.Encode(protocol.MsgUsersList, nil)
	list.Ack = "ack-1"
	sendEnvelope(t, conn, list)

	reply := readEnvelope(t, conn)
	if reply.Name != protocol.MsgUsersActive || reply.Ack != "ack-1" {
		t.Fatalf("expected acked users:active reply, got %+v", reply)
	}
}

func TestOTPGatedChannelJoinRejectsWrongSecret(t *testing.T) {
	srv := testServer()
	srv.SetDomainSecret("secret-room", "topsecret")
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := connectWS(t, ts)
	readEnvelope(t, conn)

	joinUser, _ := protocol.Encode(protocol.MsgUserJoin, protocol.UserJoinPayload{UserID: "u1", Username: "Alice"})
	sendEnvelope(t, conn, joinUser)
	readEnvelope(t, conn)
	readEnvelope(t, conn)

	badJoin, _ := protocol.Encode(protocol.MsgChannelJoin, map[string]any{"domain": "secret-room", "otp": "wrong"})
	sendEnvelope(t, conn, badJoin)

	publish, _ := protocol.Encode(protocol.MsgEventPublish, map[string]any{
		"type":    "tile:created",
		"channel": "domain:secret-room",
	})
	sendEnvelope(t, conn, publish)

	list, _ := protocol.Encode(protocol.MsgUsersList, nil)
	list.Ack = "probe"
	sendEnvelope(t, conn, list)
	reply := readEnvelope(t, conn)
	if reply.Ack != "probe" {
		t.Fatalf("expected to reach the users:list probe without an intervening tile broadcast, got %+v", reply)
	}
}

func TestConnectionCountReflectsLiveConnections(t *testing.T) {
	srv := testServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn1 := connectWS(t, ts)
	readEnvelope(t, conn1)
	conn2 := connectWS(t, ts)
	readEnvelope(t, conn2)

	deadline := time.Now().Add(time.Second)
	for srv.ConnectionCount() != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := srv.ConnectionCount(); n != 2 {
		t.Fatalf("expected 2 live connections, got %d", n)
	}
}
