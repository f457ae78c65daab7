package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newManagerTest(t *testing.T, cfg ManagerConfig) (*Manager, *time.Time) {
	t.Helper()
	store, _ := newStoreTest(t)
	m := NewManager(store, cfg)
	clock := time.Now().Truncate(time.Second)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestManagerCreateAndValidate(t *testing.T) {
	m, _ := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	sess, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" {
		t.Fatalf("empty session id")
	}
	if !sess.ExpiresAt.Equal(sess.CreatedAt.Add(time.Hour)) {
		t.Fatalf("ttl not applied: %+v", sess)
	}

	got, err := m.Validate(ctx, sess.ID, "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.UserID != "u-1" {
		t.Fatalf("validate returned wrong user: %s", got.UserID)
	}
}

func TestManagerEnforcesSessionCap(t *testing.T) {
	m, _ := newManagerTest(t, ManagerConfig{TTL: time.Hour, MaxPerUser: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0"); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if _, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0"); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	// Another user is unaffected.
	if _, err := m.Create(ctx, "u-2", "10.0.0.1", "cli/1.0"); err != nil {
		t.Fatalf("create for second user: %v", err)
	}
}

func TestManagerCapIgnoresExpiredSessions(t *testing.T) {
	m, clock := newManagerTest(t, ManagerConfig{TTL: time.Hour, MaxPerUser: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0"); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	// Both sessions run out; no sweep happens. A new login must still be
	// admitted and the stale rows must be closed on the way.
	*clock = clock.Add(2 * time.Hour)
	sess, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create after expiry: %v", err)
	}

	live, stale, err := m.store.LiveSessionIDsForUser(ctx, "u-1", *clock)
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	if len(live) != 1 || live[0] != sess.ID {
		t.Fatalf("live sessions = %v, want only %s", live, sess.ID)
	}
	if len(stale) != 0 {
		t.Fatalf("stale sessions not invalidated: %v", stale)
	}
}

func TestManagerValidateBumpsActivity(t *testing.T) {
	m, clock := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	sess, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	*clock = clock.Add(10 * time.Minute)
	if _, err := m.Validate(ctx, sess.ID, "10.0.0.1", "cli/1.0"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	got, err := m.store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastActivity.Equal(*clock) {
		t.Fatalf("last activity = %v, want %v", got.LastActivity, *clock)
	}
}

func TestManagerValidateLazilyExpires(t *testing.T) {
	m, clock := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	sess, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	*clock = clock.Add(2 * time.Hour)
	if _, err := m.Validate(ctx, sess.ID, "10.0.0.1", "cli/1.0"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// The lazy expiry closed the row: it now fails as inactive, not expired.
	got, err := m.store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get after lazy expiry: %v", err)
	}
	if got.Active {
		t.Fatalf("expired session left active")
	}
	count, err := m.store.ActiveCountForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("user index holds %d sessions after lazy expiry", count)
	}
}

func TestManagerInvalidateIdempotent(t *testing.T) {
	m, _ := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	sess, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	owner, was, err := m.Invalidate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if !was {
		t.Fatalf("first invalidate should close")
	}
	if owner != "u-1" {
		t.Fatalf("owner = %q, want u-1", owner)
	}

	_, was, err = m.Invalidate(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
	if was {
		t.Fatalf("second invalidate should be a no-op")
	}

	_, was, err = m.Invalidate(ctx, "unknown")
	if err != nil {
		t.Fatalf("invalidate unknown: %v", err)
	}
	if was {
		t.Fatalf("invalidate of unknown session should report false")
	}
}

func TestManagerInvalidateAllForUser(t *testing.T) {
	m, _ := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0"); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	closed, err := m.InvalidateAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if closed != 3 {
		t.Fatalf("closed %d sessions, want 3", closed)
	}

	count, err := m.store.ActiveCountForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("user still indexed with %d sessions", count)
	}
}

func TestManagerSweepExpired(t *testing.T) {
	m, clock := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	stale, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create stale: %v", err)
	}

	*clock = clock.Add(2 * time.Hour)
	fresh, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0")
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	swept, err := m.SweepExpired(ctx, 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	got, err := m.store.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if got.Active {
		t.Fatalf("stale session survived sweep")
	}
	if _, err := m.Validate(ctx, fresh.ID, "10.0.0.1", "cli/1.0"); err != nil {
		t.Fatalf("fresh session broken by sweep: %v", err)
	}

	// A second sweep finds nothing.
	swept, err = m.SweepExpired(ctx, 100)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("second sweep = %d, want 0", swept)
	}
}

func TestManagerStatistics(t *testing.T) {
	m, clock := newManagerTest(t, ManagerConfig{TTL: time.Hour})
	ctx := context.Background()

	if _, err := m.Create(ctx, "u-1", "10.0.0.1", "cli/1.0"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create(ctx, "u-2", "10.0.0.2", "cli/1.0"); err != nil {
		t.Fatalf("create: %v", err)
	}

	*clock = clock.Add(90 * time.Minute)
	stats, err := m.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Created != 2 || stats.Active != 2 || stats.Expired != 2 {
		t.Fatalf("stats = %+v, want 2 created, 2 indexed, 2 expired", stats)
	}
}
