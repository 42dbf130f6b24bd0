package presence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func ctxT() context.Context { return context.Background() }

func TestRedisReplicatorPublishesToChannel(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	sub := client.Subscribe(ctxT(), "tilepad:presence")
	t.Cleanup(func() { sub.Close() })
	if _, err := sub.Receive(ctxT()); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	rep := NewRedisReplicator(client, "")
	if err := rep.Publish(Mutation{UserID: "u1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got Mutation
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshal published mutation: %v", err)
		}
		if got.UserID != "u1" {
			t.Fatalf("expected userId u1, got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published mutation")
	}
}

func TestNewRedisReplicatorDefaultsChannel(t *testing.T) {
	rep := NewRedisReplicator(nil, "")
	if rep.channel != "tilepad:presence" {
		t.Fatalf("expected default channel name, got %q", rep.channel)
	}
}
