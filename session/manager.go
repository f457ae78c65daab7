package session

import (
	"context"
	"errors"
	"time"
)

// Manager composes the Redis store with the pure validator and owns the
// session lifecycle: creation under the per-user cap, validation with
// activity tracking, invalidation, forward-only extension and the expired
// sweep.
type Manager struct {
	store     *Store
	validator Validator
	ttl       time.Duration
	now       func() time.Time
}

// ManagerConfig carries the tunables for a session Manager.
type ManagerConfig struct {
	// TTL is the lifetime of a freshly created session.
	TTL time.Duration

	// MaxPerUser caps concurrent sessions per user. Zero disables the cap.
	MaxPerUser int
}

// NewManager creates a session Manager on top of the given store.
func NewManager(store *Store, cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		store:     store,
		validator: Validator{MaxSessionsPerUser: cfg.MaxPerUser},
		ttl:       cfg.TTL,
		now:       time.Now,
	}
}

// Create opens a new session for userID. It enforces the per-user cap
// before writing and returns ErrLimitExceeded when the user already holds
// the maximum number of live sessions. Expired-but-unswept sessions never
// count toward the cap; they are lazily invalidated here so a user whose
// sessions have all run out is not locked out waiting for a sweep.
func (m *Manager) Create(ctx context.Context, userID, ip, userAgent string) (*Session, error) {
	live, stale, err := m.store.LiveSessionIDsForUser(ctx, userID, m.now())
	if err != nil {
		return nil, err
	}
	for _, id := range stale {
		if _, err := m.store.Invalidate(ctx, id, userID); err != nil {
			return nil, err
		}
	}
	if err := m.validator.ValidateSessionCount(len(live)); err != nil {
		return nil, err
	}

	id, err := NewID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActivity: now,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Active:       true,
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Validate checks a session against the caller's current origin and bumps
// its last-activity timestamp on success. An expired row is lazily
// invalidated so the indexes stay honest even between sweeps. The
// returned session reflects the state after the activity bump.
func (m *Manager) Validate(ctx context.Context, sessionID, ip, userAgent string) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if err := m.validator.Validate(sess, ip, userAgent, now); err != nil {
		if errors.Is(err, ErrExpired) {
			if _, invErr := m.store.Invalidate(ctx, sess.ID, sess.UserID); invErr != nil {
				return nil, invErr
			}
		}
		return nil, err
	}

	if err := m.store.Touch(ctx, sessionID, now); err != nil {
		return nil, err
	}
	sess.LastActivity = now

	return sess, nil
}

// RiskScore scores a session against the caller's current origin.
func (m *Manager) RiskScore(sess *Session, ip, userAgent string) int {
	return m.validator.RiskScore(sess, ip, userAgent, m.now())
}

// Invalidate closes a session and reports the owning user so callers can
// attribute the closure. It is idempotent: closing an unknown or
// already-closed session reports false with no error.
func (m *Manager) Invalidate(ctx context.Context, sessionID string) (string, bool, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	closed, err := m.store.Invalidate(ctx, sessionID, sess.UserID)
	return sess.UserID, closed, err
}

// InvalidateAllForUser closes every indexed session of a user and returns
// how many were actually open.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := m.store.SessionIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		was, err := m.store.Invalidate(ctx, id, userID)
		if err != nil {
			return closed, err
		}
		if was {
			closed++
		}
	}
	return closed, nil
}

// Extend pushes a session's expiry out by extension from now. Extensions
// never shorten a session; a no-op extension reports false.
func (m *Manager) Extend(ctx context.Context, sessionID string, extension time.Duration) (bool, error) {
	if extension <= 0 {
		extension = m.ttl
	}
	return m.store.Extend(ctx, sessionID, m.now().Add(extension))
}

// SweepExpired invalidates sessions whose expiry has passed and returns
// how many rows it closed. Overlapping sweeps are safe: each row counts
// for exactly one sweeper.
func (m *Manager) SweepExpired(ctx context.Context, limit int) (int, error) {
	ids, err := m.store.ListExpired(ctx, m.now(), limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		sess, err := m.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return swept, err
		}
		was, err := m.store.Invalidate(ctx, id, sess.UserID)
		if err != nil {
			return swept, err
		}
		if was {
			swept++
		}
	}
	return swept, nil
}

// Stats is a point-in-time summary of the session population.
type Stats struct {
	Created int
	Active  int
	Expired int
}

// Statistics reports session counts from the store indexes.
func (m *Manager) Statistics(ctx context.Context) (Stats, error) {
	created, active, expired, err := m.store.Counts(ctx, m.now())
	if err != nil {
		return Stats{}, err
	}
	return Stats{Created: created, Active: active, Expired: expired}, nil
}
