// Package rbac stores role assignments and custom role definitions in
// Redis and resolves effective permissions through the role hierarchy.
// Resolved permission sets are cached per user and invalidated on every
// role mutation.
package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/authcore/permission"
)

// Store-level sentinels. The engine maps these onto its public taxonomy.
var (
	ErrStoreUnavailable  = errors.New("rbac store unavailable")
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleExists        = errors.New("role already exists")
	ErrRoleBuiltin       = errors.New("role is built in")
	ErrRoleInUse         = errors.New("role is assigned to users")
	ErrInvalidPermission = errors.New("invalid permission")
	ErrNoRoleAssigned    = errors.New("user has no role assigned")
)

// customRoleRow is the JSON layout of a custom role definition in Redis.
type customRoleRow struct {
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	ParentRole  string   `json:"parent_role,omitempty"`
}

// Store is the Redis-backed RBAC store.
type Store struct {
	redis  redis.UniversalClient
	prefix string

	mu    sync.RWMutex
	cache map[string]permission.Set // userID -> resolved permissions
}

// NewStore creates an RBAC store. prefix namespaces every key it writes.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "arb"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
		cache:  make(map[string]permission.Set),
	}
}

func (s *Store) userRolesKey() string {
	return s.prefix + ":user_roles"
}

func (s *Store) customRolesKey() string {
	return s.prefix + ":roles"
}

func (s *Store) roleUsersKey(role permission.RoleName) string {
	return s.prefix + ":roleusers:" + string(role)
}

// Lookup returns a role resolver that consults the built-in catalog first
// and falls back to custom definitions in Redis.
func (s *Store) Lookup(ctx context.Context) permission.Lookup {
	return func(name permission.RoleName) (permission.Definition, bool) {
		if def, ok := permission.BuiltinLookup(name); ok {
			return def, true
		}
		def, err := s.customRole(ctx, name)
		if err != nil {
			return permission.Definition{}, false
		}
		return def, true
	}
}

func (s *Store) customRole(ctx context.Context, name permission.RoleName) (permission.Definition, error) {
	raw, err := s.redis.HGet(ctx, s.customRolesKey(), string(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return permission.Definition{}, ErrRoleNotFound
		}
		return permission.Definition{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var row customRoleRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return permission.Definition{}, fmt.Errorf("%w: corrupt role %s", ErrStoreUnavailable, name)
	}

	return permission.Definition{
		Name:        name,
		DisplayName: row.DisplayName,
		Description: row.Description,
		Permissions: decodePermissions(row.Permissions),
		ParentRole:  permission.RoleName(row.ParentRole),
	}, nil
}

// RoleExists reports whether a role name resolves, built in or custom.
func (s *Store) RoleExists(ctx context.Context, name permission.RoleName) (bool, error) {
	if permission.IsBuiltin(name) {
		return true, nil
	}
	_, err := s.customRole(ctx, name)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AssignRole gives a user the named role, replacing any previous one.
func (s *Store) AssignRole(ctx context.Context, userID string, role permission.RoleName) error {
	exists, err := s.RoleExists(ctx, role)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}

	previous, err := s.UserRole(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoRoleAssigned) {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.userRolesKey(), userID, string(role))
		if previous != "" && previous != role {
			pipe.SRem(ctx, s.roleUsersKey(previous), userID)
		}
		pipe.SAdd(ctx, s.roleUsersKey(role), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.invalidateUser(userID)
	return nil
}

// RemoveRole clears a user's role assignment. Removing an absent
// assignment is a no-op.
func (s *Store) RemoveRole(ctx context.Context, userID string) error {
	previous, err := s.UserRole(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoRoleAssigned) {
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.userRolesKey(), userID)
		pipe.SRem(ctx, s.roleUsersKey(previous), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.invalidateUser(userID)
	return nil
}

// UserRole returns the role currently assigned to a user.
func (s *Store) UserRole(ctx context.Context, userID string) (permission.RoleName, error) {
	raw, err := s.redis.HGet(ctx, s.userRolesKey(), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoRoleAssigned
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return permission.RoleName(raw), nil
}

// UserPermissions resolves the user's effective permissions through the
// role hierarchy, consulting the cache first.
func (s *Store) UserPermissions(ctx context.Context, userID string) (permission.Set, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	role, err := s.UserRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	perms, err := permission.EffectivePermissions(role, s.Lookup(ctx))
	if err != nil {
		if errors.Is(err, permission.ErrRoleCycle) {
			// A corrupted hierarchy must not grant anything. Resolve to
			// the empty set, uncached so a repaired hierarchy takes
			// effect immediately.
			log.Printf("authcore: role hierarchy cycle at %q, treating permissions as empty", role)
			return permission.Set{}, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[userID] = perms.Clone()
	s.mu.Unlock()

	return perms, nil
}

// HasPermission reports whether the user's effective set contains perm.
// A user without a role simply has no permissions.
func (s *Store) HasPermission(ctx context.Context, userID string, perm permission.Permission) (bool, error) {
	perms, err := s.UserPermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoRoleAssigned) {
			return false, nil
		}
		return false, err
	}
	return perms.Has(perm), nil
}

// CreateCustomRole stores a new custom role definition. The name must not
// collide with a built-in or existing custom role, every permission must
// be a known atom, and a parent role, when set, must resolve.
func (s *Store) CreateCustomRole(ctx context.Context, def permission.Definition) error {
	if permission.IsBuiltin(def.Name) {
		return fmt.Errorf("%w: %s", ErrRoleBuiltin, def.Name)
	}
	for perm := range def.Permissions {
		if !permission.Valid(perm) {
			return fmt.Errorf("%w: %s", ErrInvalidPermission, perm)
		}
	}
	if def.ParentRole != "" {
		exists, err := s.RoleExists(ctx, def.ParentRole)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: parent %s", ErrRoleNotFound, def.ParentRole)
		}
	}

	row := customRoleRow{
		DisplayName: def.DisplayName,
		Description: def.Description,
		Permissions: permissionStrings(def.Permissions),
		ParentRole:  string(def.ParentRole),
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("%w: encode role %s", ErrStoreUnavailable, def.Name)
	}

	created, err := s.redis.HSetNX(ctx, s.customRolesKey(), string(def.Name), payload).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrRoleExists, def.Name)
	}

	s.invalidateAll()
	return nil
}

// DeleteCustomRole removes a custom role definition. Built-in roles and
// roles still assigned to users are refused.
func (s *Store) DeleteCustomRole(ctx context.Context, name permission.RoleName) error {
	if permission.IsBuiltin(name) {
		return fmt.Errorf("%w: %s", ErrRoleBuiltin, name)
	}

	if _, err := s.customRole(ctx, name); err != nil {
		return err
	}

	holders, err := s.redis.SCard(ctx, s.roleUsersKey(name)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if holders > 0 {
		return fmt.Errorf("%w: %s has %d users", ErrRoleInUse, name, holders)
	}

	if err := s.redis.HDel(ctx, s.customRolesKey(), string(name)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.invalidateAll()
	return nil
}

// ListRoles returns every role definition, built in plus custom.
func (s *Store) ListRoles(ctx context.Context) ([]permission.Definition, error) {
	var defs []permission.Definition
	for _, def := range permission.BuiltinRoles() {
		defs = append(defs, def)
	}

	rows, err := s.redis.HGetAll(ctx, s.customRolesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for name, raw := range rows {
		var row customRoleRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("%w: corrupt role %s", ErrStoreUnavailable, name)
		}
		defs = append(defs, permission.Definition{
			Name:        permission.RoleName(name),
			DisplayName: row.DisplayName,
			Description: row.Description,
			Permissions: decodePermissions(row.Permissions),
			ParentRole:  permission.RoleName(row.ParentRole),
		})
	}
	return defs, nil
}

// RoleHierarchy returns the child-to-parent map over all roles.
func (s *Store) RoleHierarchy(ctx context.Context) (map[permission.RoleName]permission.RoleName, error) {
	hierarchy := permission.Hierarchy()

	rows, err := s.redis.HGetAll(ctx, s.customRolesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for name, raw := range rows {
		var row customRoleRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("%w: corrupt role %s", ErrStoreUnavailable, name)
		}
		hierarchy[permission.RoleName(name)] = permission.RoleName(row.ParentRole)
	}
	return hierarchy, nil
}

// UsersWithRole returns the IDs of users currently holding the role.
func (s *Store) UsersWithRole(ctx context.Context, role permission.RoleName) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.roleUsersKey(role)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

func (s *Store) invalidateUser(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// invalidateAll flushes the whole permissions cache. Role definition
// changes can affect any assigned user through the hierarchy.
func (s *Store) invalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]permission.Set)
	s.mu.Unlock()
}

func permissionStrings(set permission.Set) []string {
	sorted := set.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

func decodePermissions(raw []string) permission.Set {
	perms := make([]permission.Permission, len(raw))
	for i, p := range raw {
		perms[i] = permission.Permission(p)
	}
	return permission.NewSet(perms...)
}
