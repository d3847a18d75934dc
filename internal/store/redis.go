package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces task records within the Redis database.
const redisKeyPrefix = "taskq:task:"

// minRedisTTL keeps already-expired records visible until the next read
// instead of writing them without a TTL.
const minRedisTTL = time.Second

// Redis stores each definition under its own key with SET NX. Keys expire
// on their own, so DeleteExpired has nothing to do.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

type redisEnvelope struct {
	Hash      string `json:"hash"`
	Body      []byte `json:"body"`
	ExpiresMs int64  `json:"expiresMs"`
}

// OpenRedis connects to the server at url and verifies it answers PING.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// PutIfAbsentOrEqual implements Store.
func (r *Redis) PutIfAbsentOrEqual(ctx context.Context, rec Record) (bool, error) {
	data, err := json.Marshal(redisEnvelope{
		Hash:      rec.Hash,
		Body:      rec.Body,
		ExpiresMs: rec.Expires.UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("put task: marshal: %w", err)
	}

	ttl := max(time.Until(rec.Expires), minRedisTTL)
	key := redisKeyPrefix + rec.TaskID

	// A key that expires between SETNX and GET leaves the id free again.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, key, data, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("put task: setnx: %w", err)
		}
		if ok {
			return true, nil
		}

		existing, found, err := r.Get(ctx, rec.TaskID)
		if err != nil {
			return false, fmt.Errorf("put task: %w", err)
		}
		if !found {
			continue
		}
		if existing.Hash != rec.Hash {
			return false, ErrConflict
		}
		return false, nil
	}
	return false, fmt.Errorf("put task: key %q flapped during write", key)
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, taskID string) (Record, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+taskID).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get task: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, false, fmt.Errorf("get task: unmarshal: %w", err)
	}

	return Record{
		TaskID:  taskID,
		Hash:    env.Hash,
		Body:    env.Body,
		Expires: time.UnixMilli(env.ExpiresMs).UTC(),
	}, true, nil
}

// DeleteExpired implements Store. Redis evicts keys at their TTL.
func (r *Redis) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return r.client.Close()
}
