package localstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/localstore"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBackendAndNotifier(t *testing.T) {
	client := redisClient(t)
	area := "test-" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), "sitecontent:local:"+area) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerArea := localstore.NewArea(localstore.NewRedisBackend(client, area),
		localstore.WithNotifier(localstore.NewRedisNotifier(client, area)))
	readerArea := localstore.NewArea(localstore.NewRedisBackend(client, area),
		localstore.WithNotifier(localstore.NewRedisNotifier(client, area)))
	if err := readerArea.Start(ctx); err != nil {
		t.Fatalf("start reader: %v", err)
	}
	defer readerArea.Close()

	received := make(chan localstore.Change, 1)
	readerArea.Open("reader").Subscribe(func(c localstore.Change) { received <- c })

	writer := writerArea.Open("writer")
	if err := writer.Write("section_hero", map[string]string{"title": "remote"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case change := <-received:
		if change.Key != "section_hero" || change.Origin != localstore.OriginNative {
			t.Fatalf("unexpected change %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cross-process change")
	}

	raw, ok := readerArea.Open("other").Read("section_hero")
	if !ok || string(raw) != `{"title":"remote"}` {
		t.Fatalf("unexpected shared value %s (%v)", raw, ok)
	}
}
