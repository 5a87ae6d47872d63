package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisBackend stores an area as a single Redis hash.
type RedisBackend struct {
	client *redis.Client
	hash   string
}

// NewRedisBackend scopes the backend to the hash named by area.
func NewRedisBackend(client *redis.Client, area string) *RedisBackend {
	if area == "" {
		area = "default"
	}
	return &RedisBackend{client: client, hash: "sitecontent:local:" + area}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.HGet(ctx, b.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localstore: redis get %q: %w", key, err)
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.HSet(ctx, b.hash, key, value).Err(); err != nil {
		return fmt.Errorf("localstore: redis set %q: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.HDel(ctx, b.hash, key).Err(); err != nil {
		return fmt.Errorf("localstore: redis delete %q: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.client.HKeys(ctx, b.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("localstore: redis keys: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

// RedisNotifier relays changes to other processes over a pub/sub channel.
// Messages published by the same notifier are ignored on receipt.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	origin  string
}

type redisEnvelope struct {
	Origin   string          `json:"origin"`
	Key      string          `json:"key"`
	NewValue json.RawMessage `json:"newValue"`
}

// NewRedisNotifier publishes on the channel derived from area.
func NewRedisNotifier(client *redis.Client, area string) *RedisNotifier {
	if area == "" {
		area = "default"
	}
	return &RedisNotifier{
		client:  client,
		channel: "sitecontent:local:" + area + ":changes",
		origin:  uuid.NewString(),
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, change Change) error {
	payload, err := json.Marshal(redisEnvelope{Origin: n.origin, Key: change.Key, NewValue: change.NewValue})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Listen subscribes to the channel and invokes fn from a background goroutine
// until stop is called or ctx is done.
func (n *RedisNotifier) Listen(ctx context.Context, fn func(Change)) (func(), error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("localstore: redis subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	messages := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var env redisEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Origin == n.origin {
					continue
				}
				change := Change{Key: env.Key, Origin: OriginNative}
				if len(env.NewValue) > 0 && string(env.NewValue) != "null" {
					change.NewValue = env.NewValue
				}
				fn(change)
			}
		}
	}()
	return cancel, nil
}
