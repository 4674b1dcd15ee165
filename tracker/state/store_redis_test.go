package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRedisClientAcceptsURLAndAddress(t *testing.T) {
	t.Parallel()

	c, err := NewRedisClient("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("NewRedisClient(url) error = %v", err)
	}
	if c.Options().Addr != "localhost:6380" || c.Options().DB != 2 {
		t.Fatalf("unexpected options: %+v", c.Options())
	}
	_ = c.Close()

	c, err = NewRedisClient("cache.internal:6379")
	if err != nil {
		t.Fatalf("NewRedisClient(addr) error = %v", err)
	}
	if c.Options().Addr != "cache.internal:6379" {
		t.Fatalf("unexpected addr: %s", c.Options().Addr)
	}
	_ = c.Close()

	if _, err := NewRedisClient("  "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestRedisStoreValidatesBeforeNetwork(t *testing.T) {
	t.Parallel()

	store, err := NewRedisStore(unreachableRedis(t))
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Load(ctx, ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Load(\"\") error = %v, want ErrInvalidSession", err)
	}
	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilSessionState) {
		t.Fatalf("Save(nil) error = %v, want ErrNilSessionState", err)
	}
	if _, err := store.UpdateFields(ctx, " ", Fields{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("UpdateFields() error = %v, want ErrInvalidSession", err)
	}
}

func TestRedisStoreSurfacesConnectionErrors(t *testing.T) {
	t.Parallel()

	store, err := NewRedisStore(unreachableRedis(t), WithKeyPrefix("test:"))
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, NewSession("s1", "f1", FlowAddAgent, time.Now())); err == nil {
		t.Fatal("expected Save() error against unreachable redis")
	}
	if _, err := store.Load(ctx, "s1"); err == nil || errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want connection error", err)
	}
	if err := store.Delete(ctx, "s1"); err == nil {
		t.Fatal("expected Delete() error against unreachable redis")
	}
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisStore(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
