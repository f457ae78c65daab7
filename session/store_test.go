package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, "as"), rdb
}

func storedSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		LastActivity: now,
		IPAddress:    "10.0.0.1",
		UserAgent:    "cli/1.0",
		Active:       true,
	}
}

func TestStoreSaveGetRoundTrip(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	sess := storedSession("sid-1", "u-1", now)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" || !got.Active {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("expiry = %v, want %v", got.ExpiresAt, sess.ExpiresAt)
	}
	if got.IPAddress != "10.0.0.1" || got.UserAgent != "cli/1.0" {
		t.Fatalf("origin fields lost: %+v", got)
	}
}

func TestStoreGetUnknown(t *testing.T) {
	store, _ := newStoreTest(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreInvalidateCleansIndexes(t *testing.T) {
	store, rdb := newStoreTest(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	sess := storedSession("sid-1", "u-1", now)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	was, err := store.Invalidate(ctx, "sid-1", "u-1")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if !was {
		t.Fatalf("expected first invalidate to close the session")
	}

	// Second close is a no-op.
	was, err = store.Invalidate(ctx, "sid-1", "u-1")
	if err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
	if was {
		t.Fatalf("second invalidate should report false")
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if got.Active {
		t.Fatalf("row still active after invalidate")
	}

	members, err := rdb.SMembers(ctx, store.userKey("u-1")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("user index not cleaned: %v", members)
	}
	indexed, err := rdb.ZCard(ctx, store.expiryIndexKey()).Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if indexed != 0 {
		t.Fatalf("expiry index not cleaned: %d members", indexed)
	}
}

func TestStoreExtendForwardOnly(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	sess := storedSession("sid-1", "u-1", now)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	moved, err := store.Extend(ctx, "sid-1", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !moved {
		t.Fatalf("forward extension should apply")
	}

	// Shrinking is refused.
	moved, err = store.Extend(ctx, "sid-1", now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("shrinking extend: %v", err)
	}
	if moved {
		t.Fatalf("backward extension should be a no-op")
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("expiry = %v, want %v", got.ExpiresAt, now.Add(2*time.Hour))
	}

	// Unknown sessions are refused without error.
	moved, err = store.Extend(ctx, "missing", now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("extend missing: %v", err)
	}
	if moved {
		t.Fatalf("extend of missing session should report false")
	}
}

func TestStoreListExpiredAndCounts(t *testing.T) {
	store, _ := newStoreTest(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	stale := storedSession("sid-old", "u-1", now.Add(-2*time.Hour))
	stale.ExpiresAt = now.Add(-time.Hour)
	fresh := storedSession("sid-new", "u-1", now)

	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("save stale: %v", err)
	}
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	ids, err := store.ListExpired(ctx, now, 10)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(ids) != 1 || ids[0] != "sid-old" {
		t.Fatalf("expired ids = %v, want [sid-old]", ids)
	}

	created, active, expired, err := store.Counts(ctx, now)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if created != 2 || active != 2 || expired != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/2/1", created, active, expired)
	}
}
