package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, nil)
	t.Cleanup(func() {
		_ = store.Close()
		mr.Close()
	})
	return store, mr
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpiredEntryReadsAsMiss(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key to read as ErrNotFound, got %v", err)
	}
}

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "lock", []byte("a"), 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}
	ok, err = store.SetNX(ctx, "lock", []byte("b"), 10*time.Second)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if ok {
		t.Fatal("expected second SetNX to lose")
	}
	if got, _ := mr.Get("lock"); got != "a" {
		t.Fatalf("expected lock to keep first value, got %q", got)
	}
	if ttl := mr.TTL("lock"); ttl != 10*time.Second {
		t.Fatalf("expected lock ttl 10s, got %v", ttl)
	}
}

func TestGetDelConsumesOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "refresh:x", []byte("7"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := store.GetDel(ctx, "refresh:x")
	if err != nil || string(val) != "7" {
		t.Fatalf("GetDel: val=%q err=%v", val, err)
	}
	if _, err := store.GetDel(ctx, "refresh:x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second GetDel to miss, got %v", err)
	}
}

func TestDeleteCountsExistingKeys(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	n, err := store.Delete(ctx, "a", "b")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted key, got %d", n)
	}
	if n, err := store.Delete(ctx); err != nil || n != 0 {
		t.Fatalf("empty delete: n=%d err=%v", n, err)
	}
}

func TestDeleteIfEqualLeavesOtherOwnersValue(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "lock", []byte("holder-b"), 0)
	ok, err := store.DeleteIfEqual(ctx, "lock", []byte("holder-a"))
	if err != nil || ok {
		t.Fatalf("mismatched DeleteIfEqual: ok=%v err=%v", ok, err)
	}
	if got, _ := mr.Get("lock"); got != "holder-b" {
		t.Fatalf("expected holder-b to survive, got %q", got)
	}

	ok, err = store.DeleteIfEqual(ctx, "lock", []byte("holder-b"))
	if err != nil || !ok {
		t.Fatalf("matching DeleteIfEqual: ok=%v err=%v", ok, err)
	}
	if mr.Exists("lock") {
		t.Fatal("expected lock to be removed")
	}
	if ok, err := store.DeleteIfEqual(ctx, "lock", []byte("holder-b")); err != nil || ok {
		t.Fatalf("DeleteIfEqual on absent key: ok=%v err=%v", ok, err)
	}
}

func TestOperationsWrapUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	ctx := context.Background()
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Get, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Set, got %v", err)
	}
	if _, err := store.DeleteIfEqual(ctx, "k", []byte("v")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from DeleteIfEqual, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Ping, got %v", err)
	}
}

func TestDialLogsConnectionFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	_, err = Dial(context.Background(), RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}, zap.New(core))
	if err == nil {
		t.Fatal("expected dial against closed server to fail")
	}
	if logs.FilterMessage("redis dial failed").Len() == 0 {
		t.Fatal("expected dial failure to be logged")
	}
}

func TestDialFromURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()

	store, err := Dial(context.Background(), RedisConfig{URL: "redis://" + mr.Addr() + "/0"}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer store.Close()

	if err := store.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("set after dial: %v", err)
	}
}
