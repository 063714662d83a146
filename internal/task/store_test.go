package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	rec := Task{ID: "abc", Kind: KindCollection, Status: StatusStarting, Items: &ItemCounts{Total: 3}, CreatedAt: time.Now().UTC()}

	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, rec); !errors.Is(err, ErrTaskExists) {
		t.Fatalf("expected ErrTaskExists, got %v", err)
	}
	if err := store.Update(ctx, Task{ID: "missing"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on update, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on get, got %v", err)
	}

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Items.Completed = 2
	again, _ := store.Get(ctx, "abc")
	if again.Items.Completed != 0 {
		t.Fatalf("mutating a returned record leaked into the store")
	}

	got.Status = StatusDownloading
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ = store.Get(ctx, "abc")
	if again.Status != StatusDownloading || again.Items.Completed != 2 {
		t.Fatalf("update not applied: %+v", again)
	}

	list, err := store.List(ctx)
	if err != nil || len(list) != 1 || list[0].ID != "abc" {
		t.Fatalf("list: %v %+v", err, list)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(t.TempDir()))
}

func TestFileStoreRejectsPathLikeIDs(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if _, err := store.Get(context.Background(), "../etc"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)

	if ttl := mr.TTL(taskKey("abc")); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected ttl to be set, got %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(context.Background(), "abc"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected record to expire, got %v", err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr}); err == nil {
		t.Fatalf("expected ping error")
	}
}
