package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionThenUpdateCursor(t *testing.T) {
	reg := New(time.Minute)
	sess := reg.CreateSession("u1", "c1", "doc1")
	assert.NotEmpty(t, sess.SessionID)

	require.True(t, reg.UpdateSessionCursor("c1", 42))

	active := reg.GetActiveSessions("doc1")
	require.Len(t, active, 1)
	assert.Equal(t, 42, active[0].CursorPosition)
}

func TestUpdateSessionCursorUnknownClient(t *testing.T) {
	reg := New(time.Minute)
	assert.False(t, reg.UpdateSessionCursor("ghost", 1))
}

func TestCreateSessionRecreatesOnReconnect(t *testing.T) {
	reg := New(time.Minute)
	first := reg.CreateSession("u1", "c1", "doc1")
	second := reg.CreateSession("u1", "c1", "doc1")

	assert.NotEqual(t, first.SessionID, second.SessionID, "a reconnect with the same clientId should get a fresh session id")
}

func TestGetActiveSessionsExcludesIdleAndEnded(t *testing.T) {
	clock := time.Now()
	reg := New(30 * time.Second)
	reg.now = func() time.Time { return clock }

	reg.CreateSession("u1", "c1", "doc1")
	reg.CreateSession("u2", "c2", "doc1")
	reg.EndSession("c2")

	active := reg.GetActiveSessions("doc1")
	require.Len(t, active, 1)
	assert.Equal(t, "c1", active[0].ClientID)

	clock = clock.Add(30 * time.Second)
	active = reg.GetActiveSessions("doc1")
	assert.Empty(t, active, "a session exactly at the idle threshold should be expired")
}

func TestCleanupOldSessionsRemovesRegardlessOfActive(t *testing.T) {
	clock := time.Now()
	reg := New(time.Minute)
	reg.now = func() time.Time { return clock }

	reg.CreateSession("u1", "c1", "doc1")
	clock = clock.Add(5 * time.Minute)

	removed := reg.CleanupOldSessions(time.Minute)
	assert.Equal(t, 1, removed)
	assert.False(t, reg.UpdateSessionCursor("c1", 1))
}

func TestEndByClientRemovesImmediately(t *testing.T) {
	reg := New(time.Minute)
	reg.CreateSession("u1", "c1", "doc1")
	reg.EndByClient("c1")

	assert.False(t, reg.Touch("c1"))
}
