// Package userstore provides a Redis-backed reference implementation of
// the authcore.UserStore contract: one hash per user plus username and
// email uniqueness indexes.
package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/authcore"
)

// Store implements authcore.UserStore on Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New creates a user store. prefix namespaces every key it writes.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "au"
	}
	return &Store{redis: client, prefix: prefix, now: time.Now}
}

func (s *Store) userKey(id string) string {
	return s.prefix + ":" + id
}

func (s *Store) nameIndexKey() string {
	return s.prefix + "i:name"
}

func (s *Store) emailIndexKey() string {
	return s.prefix + "i:mail"
}

func (s *Store) allKey() string {
	return s.prefix + ":all"
}

// Create inserts a new user row. Username and email collisions are
// detected through the uniqueness indexes; the winner of a concurrent
// race is whoever claims the index entry first.
func (s *Store) Create(ctx context.Context, input authcore.CreateUserInput) (*authcore.UserRecord, error) {
	username := strings.ToLower(input.Username)
	email := strings.ToLower(input.Email)

	id := uuid.NewString()

	claimed, err := s.redis.HSetNX(ctx, s.nameIndexKey(), username, id).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if !claimed {
		return nil, authcore.ErrUsernameTaken
	}

	claimed, err = s.redis.HSetNX(ctx, s.emailIndexKey(), email, id).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if !claimed {
		// Roll back the username claim so the name stays available.
		if err := s.redis.HDel(ctx, s.nameIndexKey(), username).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
		}
		return nil, authcore.ErrEmailTaken
	}

	now := s.now()
	record := &authcore.UserRecord{
		ID:           id,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Status:       input.Status,
		Profile:      input.Profile,
		Preferences:  input.Preferences,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	fields, err := encodeRecord(record)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.userKey(id), fields)
		pipe.SAdd(ctx, s.allKey(), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	return record, nil
}

// GetByID fetches a user row.
func (s *Store) GetByID(ctx context.Context, id string) (*authcore.UserRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, authcore.ErrUserNotFound
	}
	return decodeRecord(id, fields)
}

// GetByUsername resolves a username through the index. Lookup is
// case-insensitive, matching the index normalization.
func (s *Store) GetByUsername(ctx context.Context, username string) (*authcore.UserRecord, error) {
	return s.getViaIndex(ctx, s.nameIndexKey(), strings.ToLower(username))
}

// GetByEmail resolves an email through the index.
func (s *Store) GetByEmail(ctx context.Context, email string) (*authcore.UserRecord, error) {
	return s.getViaIndex(ctx, s.emailIndexKey(), strings.ToLower(email))
}

func (s *Store) getViaIndex(ctx context.Context, indexKey, member string) (*authcore.UserRecord, error) {
	id, err := s.redis.HGet(ctx, indexKey, member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return s.GetByID(ctx, id)
}

// UpdateFields applies a partial update to a user row.
func (s *Store) UpdateFields(ctx context.Context, id string, update authcore.UserFieldUpdate) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"updated_at": s.now().Unix(),
	}
	if update.PasswordHash != nil {
		fields["password_hash"] = *update.PasswordHash
	}
	if update.Role != nil {
		fields["role"] = *update.Role
	}
	if update.Status != nil {
		fields["status"] = string(*update.Status)
	}
	if update.LastLogin != nil {
		fields["last_login"] = update.LastLogin.Unix()
	}
	if update.Profile != nil {
		payload, err := json.Marshal(update.Profile)
		if err != nil {
			return fmt.Errorf("%w: encode profile", authcore.ErrStoreUnavailable)
		}
		fields["profile"] = payload
	}
	if update.Preferences != nil {
		payload, err := json.Marshal(update.Preferences)
		if err != nil {
			return fmt.Errorf("%w: encode preferences", authcore.ErrStoreUnavailable)
		}
		fields["preferences"] = payload
	}

	if err := s.redis.HSet(ctx, s.userKey(id), fields).Err(); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

// List returns user rows matching the filter. Zero filter values match
// everything.
func (s *Store) List(ctx context.Context, filter authcore.ListUsersFilter) ([]*authcore.UserRecord, error) {
	ids, err := s.redis.SMembers(ctx, s.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	users := make([]*authcore.UserRecord, 0, len(ids))
	for _, id := range ids {
		user, err := s.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, authcore.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func encodeRecord(r *authcore.UserRecord) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		"username":      r.Username,
		"email":         r.Email,
		"password_hash": r.PasswordHash,
		"role":          r.Role,
		"status":        string(r.Status),
		"created_at":    r.CreatedAt.Unix(),
		"updated_at":    r.UpdatedAt.Unix(),
	}
	if !r.LastLogin.IsZero() {
		fields["last_login"] = r.LastLogin.Unix()
	}
	if r.Profile != nil {
		payload, err := json.Marshal(r.Profile)
		if err != nil {
			return nil, fmt.Errorf("%w: encode profile", authcore.ErrStoreUnavailable)
		}
		fields["profile"] = payload
	}
	if r.Preferences != nil {
		payload, err := json.Marshal(r.Preferences)
		if err != nil {
			return nil, fmt.Errorf("%w: encode preferences", authcore.ErrStoreUnavailable)
		}
		fields["preferences"] = payload
	}
	return fields, nil
}

func decodeRecord(id string, fields map[string]string) (*authcore.UserRecord, error) {
	record := &authcore.UserRecord{
		ID:           id,
		Username:     fields["username"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		Role:         fields["role"],
		Status:       authcore.UserStatus(fields["status"]),
	}

	for name, dst := range map[string]*time.Time{
		"created_at": &record.CreatedAt,
		"updated_at": &record.UpdatedAt,
		"last_login": &record.LastLogin,
	} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt field %s", authcore.ErrStoreUnavailable, name)
		}
		*dst = time.Unix(sec, 0)
	}

	if raw, ok := fields["profile"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &record.Profile); err != nil {
			return nil, fmt.Errorf("%w: corrupt profile", authcore.ErrStoreUnavailable)
		}
	}
	if raw, ok := fields["preferences"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &record.Preferences); err != nil {
			return nil, fmt.Errorf("%w: corrupt preferences", authcore.ErrStoreUnavailable)
		}
	}

	return record, nil
}
