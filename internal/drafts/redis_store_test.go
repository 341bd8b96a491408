package drafts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("://nope", time.Hour); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveAndLoadDraft(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	draft := Draft{MinutesID: "min_1", UserID: "usr_b", UserName: "B", Content: "<p>wip</p>", BaseRevision: 3}
	if err := store.Save(ctx, draft); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "min_1", "usr_b")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Content != draft.Content || got.BaseRevision != 3 {
		t.Errorf("unexpected draft: %+v", got)
	}
	if got.SavedAt.IsZero() {
		t.Error("expected SavedAt to be stamped")
	}

	if _, err := store.Load(ctx, "min_1", "usr_other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDraftsExpire(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, Draft{MinutesID: "min_1", UserID: "usr_b", Content: "x"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := s.TTL("draft:min_1"); ttl != time.Hour {
		t.Fatalf("expected one hour ttl, got %s", ttl)
	}

	s.FastForward(2 * time.Hour)

	if _, err := store.Load(ctx, "min_1", "usr_b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired draft, got %v", err)
	}
}

func TestListAndDiscard(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	_ = store.Save(ctx, Draft{MinutesID: "min_1", UserID: "usr_a", Content: "a", SavedAt: base})
	_ = store.Save(ctx, Draft{MinutesID: "min_1", UserID: "usr_b", Content: "b", SavedAt: base.Add(time.Minute)})

	list, err := store.List(ctx, "min_1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].UserID != "usr_b" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := store.Discard(ctx, "min_1", "usr_b"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if list, _ := store.List(ctx, "min_1"); len(list) != 1 {
		t.Fatalf("expected one draft left, got %d", len(list))
	}

	if err := store.DiscardAll(ctx, "min_1"); err != nil {
		t.Fatalf("DiscardAll failed: %v", err)
	}
	if s.Exists("draft:min_1") {
		t.Error("expected hash to be removed")
	}
}
