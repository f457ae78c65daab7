// Package activity persists audit events as a per-user activity log in
// Redis, capped to a configurable number of recent entries, and serves
// them back for the activity review APIs.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/authcore/internal/audit"
)

// ErrLogUnavailable indicates the activity backend is unreachable.
var ErrLogUnavailable = errors.New("activity log unavailable")

// DefaultMaxEntriesPerUser caps each user's activity list.
const DefaultMaxEntriesPerUser = 500

// Log is a Redis-backed activity log. It satisfies the audit sink
// interface so the engine's dispatcher can feed it directly.
type Log struct {
	redis      redis.UniversalClient
	prefix     string
	maxEntries int
}

// NewLog creates an activity log. prefix namespaces the per-user lists,
// maxEntries caps each list (0 uses DefaultMaxEntriesPerUser).
func NewLog(client redis.UniversalClient, prefix string, maxEntries int) *Log {
	if prefix == "" {
		prefix = "aact"
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntriesPerUser
	}
	return &Log{redis: client, prefix: prefix, maxEntries: maxEntries}
}

func (l *Log) userKey(userID string) string {
	return l.prefix + ":" + userID
}

// Emit appends the event to the user's activity list, newest first, and
// trims the list to the cap. Events without a user ID are skipped; sink
// delivery is best effort, so failures are logged rather than surfaced.
func (l *Log) Emit(ctx context.Context, event audit.Event) {
	if event.UserID == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("authcore: activity log encode: %v", err)
		return
	}

	key := l.userKey(event.UserID)
	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(l.maxEntries)-1)
		return nil
	})
	if err != nil {
		log.Printf("authcore: activity log write: %v", err)
	}
}

// ListByUser returns up to limit recent events for a user, newest first.
func (l *Log) ListByUser(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	if limit <= 0 || limit > l.maxEntries {
		limit = l.maxEntries
	}

	rows, err := l.redis.LRange(ctx, l.userKey(userID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLogUnavailable, err)
	}

	events := make([]audit.Event, 0, len(rows))
	for _, row := range rows {
		var event audit.Event
		if err := json.Unmarshal([]byte(row), &event); err != nil {
			// Skip corrupt rows instead of failing the whole read.
			log.Printf("authcore: activity log decode: %v", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// PurgeUser deletes a user's activity list.
func (l *Log) PurgeUser(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLogUnavailable, err)
	}
	return nil
}
