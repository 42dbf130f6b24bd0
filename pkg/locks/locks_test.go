package locks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireGrantsAndRenews(t *testing.T) {
	table := New()

	ok, owner := table.Acquire("doc.title", "alice", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "alice", owner)

	ok, owner = table.Acquire("doc.title", "alice", time.Minute)
	require.True(t, ok, "expected same owner to renew")
	assert.Equal(t, "alice", owner)
}

func TestAcquireRejectsOtherOwner(t *testing.T) {
	table := New()
	table.Acquire("doc.title", "alice", time.Minute)

	ok, owner := table.Acquire("doc.title", "bob", time.Minute)
	assert.False(t, ok)
	assert.Equal(t, "alice", owner)
}

func TestAcquireAfterExpiryGrantsNewOwner(t *testing.T) {
	table := New()
	clock := time.Now()
	table.now = func() time.Time { return clock }

	table.Acquire("doc.title", "alice", 10*time.Millisecond)

	clock = clock.Add(20 * time.Millisecond)
	ok, owner := table.Acquire("doc.title", "bob", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "bob", owner)
}

func TestReleaseRequiresOwnerMatch(t *testing.T) {
	table := New()
	table.Acquire("doc.title", "alice", time.Minute)

	assert.False(t, table.Release("doc.title", "bob"))
	assert.True(t, table.Release("doc.title", "alice"))

	_, locked := table.Check("doc.title")
	assert.False(t, locked)
}

func TestCheckReportsExpiredAsUnlocked(t *testing.T) {
	table := New()
	clock := time.Now()
	table.now = func() time.Time { return clock }

	table.Acquire("doc.title", "alice", 10*time.Millisecond)
	clock = clock.Add(10 * time.Millisecond)

	_, locked := table.Check("doc.title")
	assert.False(t, locked, "a lock exactly at its TTL boundary should be treated as expired")
}
