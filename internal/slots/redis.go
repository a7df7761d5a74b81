package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/slotpaste/agent/internal/keys"
)

const defaultRedisPrefix = "slotpaste:slot:"

// Redis persists each slot as a hash {content, updated_at} under
// <prefix><label>.
type Redis struct {
	client *backend.Client
	prefix string
}

// RedisOption configures a Redis backing.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix for slot hashes.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects to a Redis server.
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(slot keys.SlotId) string {
	return r.prefix + slot.Label()
}

func (r *Redis) Name() string { return "redis" }

// LoadAll fetches all six slot hashes in one pipeline.
func (r *Redis) LoadAll(ctx context.Context) (map[keys.SlotId]string, error) {
	pipe := r.client.Pipeline()
	cmds := make(map[keys.SlotId]*backend.StringCmd, len(keys.AllSlots))
	for _, slot := range keys.AllSlots {
		cmds[slot] = pipe.HGet(ctx, r.key(slot), "content")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("load slots from redis: %w", err)
	}

	out := make(map[keys.SlotId]string)
	for slot, cmd := range cmds {
		val, err := cmd.Result()
		if errors.Is(err, backend.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load slot %s from redis: %w", slot.Label(), err)
		}
		out[slot] = val
	}
	return out, nil
}

// Upsert overwrites the slot hash.
func (r *Redis) Upsert(ctx context.Context, slot keys.SlotId, content string, updatedAt time.Time) error {
	err := r.client.HSet(ctx, r.key(slot), "content", content, "updated_at", updatedAt.Unix()).Err()
	if err != nil {
		return fmt.Errorf("save slot %s to redis: %w", slot.Label(), err)
	}
	return nil
}

var _ Timestamped = (*Redis)(nil)

// UpdatedAt returns the last write time of slot, or the zero time if unset.
func (r *Redis) UpdatedAt(ctx context.Context, slot keys.SlotId) (time.Time, error) {
	secs, err := r.client.HGet(ctx, r.key(slot), "updated_at").Int64()
	if errors.Is(err, backend.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read slot %s time from redis: %w", slot.Label(), err)
	}
	return time.Unix(secs, 0), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
