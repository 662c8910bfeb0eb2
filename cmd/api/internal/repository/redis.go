package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/apperr"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// Compile-time checks to ensure RedisStore implements the repository interfaces
var (
	_ OverrideSource = (*RedisStore)(nil)
	_ WorldSource    = (*RedisStore)(nil)
	_ ServerRegistry = (*RedisStore)(nil)
	_ TriggerSource  = (*RedisStore)(nil)
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &apperr.StoreError{Op: "PING", Err: err}
	}
	return nil
}

// FetchPriceOverrides reads the override hash (HGETALL). Every field must be an
// integer item id and every value a float multiplier.
func (r *RedisStore) FetchPriceOverrides(ctx context.Context) (models.PriceOverrides, error) {
	raw, err := r.client.HGetAll(ctx, KeyPriceOverrides).Result()
	if err != nil {
		return nil, &apperr.StoreError{Op: "HGETALL", Key: KeyPriceOverrides, Err: err}
	}

	overrides := make(models.PriceOverrides, len(raw))
	for field, value := range raw {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, &apperr.DecodeError{Source: KeyPriceOverrides, Err: fmt.Errorf("item id %q: %w", field, err)}
		}
		multiplier, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &apperr.DecodeError{Source: KeyPriceOverrides, Err: fmt.Errorf("multiplier of %d: %w", id, err)}
		}
		overrides[id] = multiplier
	}
	return overrides, nil
}

// FetchWorlds reads the world set (SMEMBERS). Each member is decoded on its
// own; one malformed member fails the whole call.
func (r *RedisStore) FetchWorlds(ctx context.Context) ([]models.World, error) {
	members, err := r.client.SMembers(ctx, KeyWorlds).Result()
	if err != nil {
		return nil, &apperr.StoreError{Op: "SMEMBERS", Key: KeyWorlds, Err: err}
	}

	worlds := make([]models.World, 0, len(members))
	for _, member := range members {
		var w models.World
		if err := json.Unmarshal([]byte(member), &w); err != nil {
			return nil, &apperr.DecodeError{Source: KeyWorlds, Err: fmt.Errorf("member %q: %w", truncate(member, 64), err)}
		}
		worlds = append(worlds, w)
	}
	return worlds, nil
}

// RegisterServer records member with role in the directory hash key (HSET).
func (r *RedisStore) RegisterServer(ctx context.Context, key, member, role string) error {
	if err := r.client.HSet(ctx, key, member, role).Err(); err != nil {
		return &apperr.StoreError{Op: "HSET", Key: key, Err: err}
	}
	return nil
}

// Subscribe listens on a pub/sub channel and forwards message payloads.
func (r *RedisStore) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	ps := r.client.Subscribe(ctx, channel)

	// First reply is the subscription confirmation.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, &apperr.SubscribeError{Channel: channel, Err: err}
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
