package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kolabhq/tilepad/pkg/model"
)

// Mutation is a single presence change fanned out to replicators. Removed
// distinguishes "user left entirely" from an ordinary record update.
type Mutation struct {
	UserID  string               `json:"userId"`
	Record  model.PresenceRecord `json:"record,omitempty"`
	Removed bool                 `json:"removed,omitempty"`
}

// Replicator fans presence mutations out to other server processes. It is
// best-effort and non-blocking; the in-process Registry never waits on it.
type Replicator interface {
	Publish(m Mutation) error
}

// RedisReplicator publishes presence mutations on a Redis pub/sub channel so
// other nodes behind the same load balancer converge on a shared presence
// view. Subscribing and replaying published mutations into a remote node's
// own Registry is the caller's responsibility; this type only publishes.
type RedisReplicator struct {
	client  *redis.Client
	channel string
}

// NewRedisReplicator wires a Replicator against an existing Redis client.
func NewRedisReplicator(client *redis.Client, channel string) *RedisReplicator {
	if channel == "" {
		channel = "tilepad:presence"
	}
	return &RedisReplicator{client: client, channel: channel}
}

func (r *RedisReplicator) Publish(m Mutation) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal presence mutation: %w", err)
	}
	return r.client.Publish(context.Background(), r.channel, payload).Err()
}
