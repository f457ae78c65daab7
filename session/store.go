package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps any Redis failure so raw store errors never
// cross the package boundary.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrNotFound is returned when a session row does not exist.
var ErrNotFound = errors.New("session not found")

// Rows for swept or invalidated sessions are kept for this long past
// expiry so statistics and audits can still see them, then Redis reclaims
// the key.
const rowRetention = 7 * 24 * time.Hour

const invalidateScript = `
local active = redis.call("HGET", KEYS[1], "is_active")
redis.call("SREM", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
if not active then
  return -1
end
if active == "1" then
  redis.call("HSET", KEYS[1], "is_active", "0")
  return 1
end
return 0
`

var invalidateLua = redis.NewScript(invalidateScript)

const extendScript = `
local cur = tonumber(redis.call("HGET", KEYS[1], "expiry_time") or "0")
if cur == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "is_active") ~= "1" then
  return 0
end
local next = tonumber(ARGV[1])
if next <= cur then
  return 0
end
redis.call("HSET", KEYS[1], "expiry_time", ARGV[1])
redis.call("ZADD", KEYS[2], next, ARGV[2])
return 1
`

var extendLua = redis.NewScript(extendScript)

// Store is the Redis-backed session store. Each session is one hash row
// mirroring the user_sessions schema, indexed by a per-user set and an
// expiry-ordered sorted set used by the maintenance sweep.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session Store backed by the given Redis client.
// prefix namespaces every key this store writes.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

func (s *Store) expiryIndexKey() string {
	return s.prefix + "x:expiry"
}

func (s *Store) createdCountKey() string {
	return s.prefix + "c:created"
}

// Save persists a new session row and adds it to both indexes.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	key := s.key(sess.ID)

	fields := map[string]interface{}{
		"user_id":       sess.UserID,
		"created_at":    sess.CreatedAt.Unix(),
		"expiry_time":   sess.ExpiresAt.Unix(),
		"last_activity": sess.LastActivity.Unix(),
		"ip_address":    sess.IPAddress,
		"user_agent":    sess.UserAgent,
		"is_active":     boolField(sess.Active),
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.ExpireAt(ctx, key, sess.ExpiresAt.Add(rowRetention))
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		pipe.ZAdd(ctx, s.expiryIndexKey(), redis.Z{Score: float64(sess.ExpiresAt.Unix()), Member: sess.ID})
		pipe.Incr(ctx, s.createdCountKey())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Get fetches a session row by ID.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeFields(sessionID, fields)
}

// Touch bumps the session's last-activity timestamp. Concurrent bumps
// resolve last-writer-wins.
func (s *Store) Touch(ctx context.Context, sessionID string, now time.Time) error {
	if err := s.redis.HSet(ctx, s.key(sessionID), "last_activity", now.Unix()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Invalidate marks the session inactive and removes it from both indexes
// in one atomic script. It reports whether the row transitioned from
// active to inactive, so overlapping invalidations and sweeps count each
// session once.
func (s *Store) Invalidate(ctx context.Context, sessionID, userID string) (bool, error) {
	result, err := invalidateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.userKey(userID), s.expiryIndexKey()},
		sessionID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return result == 1, nil
}

// Extend moves the session expiry forward to newExpiry. Extensions are
// forward-only: an earlier expiry, a missing row, or an inactive session
// leave the row untouched and report false.
func (s *Store) Extend(ctx context.Context, sessionID string, newExpiry time.Time) (bool, error) {
	result, err := extendLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID), s.expiryIndexKey()},
		newExpiry.Unix(),
		sessionID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if result == 1 {
		// Push the GC horizon out alongside the new expiry.
		if err := s.redis.ExpireAt(ctx, s.key(sessionID), newExpiry.Add(rowRetention)).Err(); err != nil {
			return true, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return result == 1, nil
}

// ActiveCountForUser returns the number of indexed sessions for a user.
func (s *Store) ActiveCountForUser(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(count), nil
}

// LiveSessionIDsForUser partitions a user's indexed sessions into live
// and expired at now, judged by the expiry index scores. Sessions in the
// user index but missing from the expiry index are reported expired.
func (s *Store) LiveSessionIDsForUser(ctx context.Context, userID string, now time.Time) (live, expired []string, err error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	scores, err := s.redis.ZMScore(ctx, s.expiryIndexKey(), ids...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	cutoff := float64(now.Unix())
	for i, id := range ids {
		if i < len(scores) && scores[i] > cutoff {
			live = append(live, id)
		} else {
			expired = append(expired, id)
		}
	}
	return live, expired, nil
}

// SessionIDsForUser returns the indexed session IDs for a user.
func (s *Store) SessionIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// ListExpired returns up to limit session IDs whose expiry has passed at
// now but which are still present in the active index.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}

	ids, err := s.redis.ZRangeByScore(ctx, s.expiryIndexKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// Counts returns best-effort session statistics: sessions ever created,
// currently indexed as active, and indexed-but-expired awaiting sweep.
func (s *Store) Counts(ctx context.Context, now time.Time) (created, active, expired int, err error) {
	createdCount, err := s.redis.Get(ctx, s.createdCountKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	activeCount, err := s.redis.ZCard(ctx, s.expiryIndexKey()).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	expiredCount, err := s.redis.ZCount(ctx, s.expiryIndexKey(), "-inf", strconv.FormatInt(now.Unix(), 10)).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return int(createdCount), int(activeCount), int(expiredCount), nil
}

// Ping returns a point-in-time Redis availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeFields(sessionID string, fields map[string]string) (*Session, error) {
	createdAt, err := unixField(fields, "created_at")
	if err != nil {
		return nil, err
	}
	expiresAt, err := unixField(fields, "expiry_time")
	if err != nil {
		return nil, err
	}
	lastActivity, err := unixField(fields, "last_activity")
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:           sessionID,
		UserID:       fields["user_id"],
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
		LastActivity: lastActivity,
		IPAddress:    fields["ip_address"],
		UserAgent:    fields["user_agent"],
		Active:       fields["is_active"] == "1",
	}, nil
}

func unixField(fields map[string]string, name string) (time.Time, error) {
	raw, ok := fields[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing field %s", ErrStoreUnavailable, name)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: corrupt field %s", ErrStoreUnavailable, name)
	}
	return time.Unix(sec, 0), nil
}
