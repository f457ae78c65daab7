package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/authcore/permission"
)

func newStoreTest(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, "arb")
}

func TestAssignAndResolveBuiltinRole(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	if err := store.AssignRole(ctx, "u-1", permission.RoleTrader); err != nil {
		t.Fatalf("assign: %v", err)
	}

	role, err := store.UserRole(ctx, "u-1")
	if err != nil {
		t.Fatalf("user role: %v", err)
	}
	if role != permission.RoleTrader {
		t.Fatalf("role = %s, want trader", role)
	}

	perms, err := store.UserPermissions(ctx, "u-1")
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	// Trader permissions include the inherited user and guest atoms.
	for _, want := range []permission.Permission{
		permission.ExecuteTrades,
		permission.ViewPortfolio,
		permission.AccessSystem,
	} {
		if !perms.Has(want) {
			t.Fatalf("trader missing %s: %v", want, perms.Sorted())
		}
	}
	if perms.Has(permission.ManageUsers) {
		t.Fatalf("trader should not manage users")
	}
}

func TestAssignUnknownRoleFails(t *testing.T) {
	store := newStoreTest(t)
	err := store.AssignRole(context.Background(), "u-1", "wizard")
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestReassignMovesRoleMembership(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	if err := store.AssignRole(ctx, "u-1", permission.RoleUser); err != nil {
		t.Fatalf("assign user: %v", err)
	}
	if err := store.AssignRole(ctx, "u-1", permission.RoleManager); err != nil {
		t.Fatalf("assign manager: %v", err)
	}

	was, err := store.UsersWithRole(ctx, permission.RoleUser)
	if err != nil {
		t.Fatalf("users with role: %v", err)
	}
	if len(was) != 0 {
		t.Fatalf("old role still holds members: %v", was)
	}
	now, err := store.UsersWithRole(ctx, permission.RoleManager)
	if err != nil {
		t.Fatalf("users with role: %v", err)
	}
	if len(now) != 1 || now[0] != "u-1" {
		t.Fatalf("manager members = %v, want [u-1]", now)
	}
}

func TestRemoveRole(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	if err := store.AssignRole(ctx, "u-1", permission.RoleUser); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := store.RemoveRole(ctx, "u-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.UserRole(ctx, "u-1"); !errors.Is(err, ErrNoRoleAssigned) {
		t.Fatalf("expected ErrNoRoleAssigned, got %v", err)
	}

	// Removing again is a no-op.
	if err := store.RemoveRole(ctx, "u-1"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestCustomRoleLifecycle(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	def := permission.Definition{
		Name:        "senior_analyst",
		DisplayName: "Senior Analyst",
		Description: "Analyst with model management and analytics",
		Permissions: permission.NewSet(permission.ManageAIModels, permission.ViewAnalytics),
		ParentRole:  permission.RoleAnalyst,
	}
	if err := store.CreateCustomRole(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Duplicate names are refused.
	if err := store.CreateCustomRole(ctx, def); !errors.Is(err, ErrRoleExists) {
		t.Fatalf("expected ErrRoleExists, got %v", err)
	}

	if err := store.AssignRole(ctx, "u-1", "senior_analyst"); err != nil {
		t.Fatalf("assign custom: %v", err)
	}

	perms, err := store.UserPermissions(ctx, "u-1")
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if !perms.Has(permission.ManageAIModels) || !perms.Has(permission.ViewAnalytics) {
		t.Fatalf("custom role permissions missing: %v", perms.Sorted())
	}
	// Inherited through the analyst parent chain.
	for _, want := range []permission.Permission{
		permission.TrainAIModels,
		permission.ManageData,
		permission.ViewPortfolio,
	} {
		if !perms.Has(want) {
			t.Fatalf("inherited permission %s missing: %v", want, perms.Sorted())
		}
	}

	// Deleting while assigned is refused.
	if err := store.DeleteCustomRole(ctx, "senior_analyst"); !errors.Is(err, ErrRoleInUse) {
		t.Fatalf("expected ErrRoleInUse, got %v", err)
	}

	if err := store.RemoveRole(ctx, "u-1"); err != nil {
		t.Fatalf("remove assignment: %v", err)
	}
	if err := store.DeleteCustomRole(ctx, "senior_analyst"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteCustomRole(ctx, "senior_analyst"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestCustomRoleValidation(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	// Built-in names are reserved.
	err := store.CreateCustomRole(ctx, permission.Definition{Name: permission.RoleAdmin})
	if !errors.Is(err, ErrRoleBuiltin) {
		t.Fatalf("expected ErrRoleBuiltin, got %v", err)
	}
	err = store.DeleteCustomRole(ctx, permission.RoleAdmin)
	if !errors.Is(err, ErrRoleBuiltin) {
		t.Fatalf("expected ErrRoleBuiltin, got %v", err)
	}

	// Unknown permission atoms are refused.
	err = store.CreateCustomRole(ctx, permission.Definition{
		Name:        "broken",
		Permissions: permission.NewSet("fly_spaceship"),
	})
	if !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}

	// Unknown parents are refused.
	err = store.CreateCustomRole(ctx, permission.Definition{
		Name:       "orphan",
		ParentRole: "missing_parent",
	})
	if !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestPermissionCacheInvalidation(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	if err := store.AssignRole(ctx, "u-1", permission.RoleGuest); err != nil {
		t.Fatalf("assign guest: %v", err)
	}
	perms, err := store.UserPermissions(ctx, "u-1")
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if perms.Has(permission.ExecuteTrades) {
		t.Fatalf("guest should not trade")
	}

	// Promotion must be visible immediately, not after a cache TTL.
	if err := store.AssignRole(ctx, "u-1", permission.RoleTrader); err != nil {
		t.Fatalf("assign trader: %v", err)
	}
	perms, err = store.UserPermissions(ctx, "u-1")
	if err != nil {
		t.Fatalf("permissions after promotion: %v", err)
	}
	if !perms.Has(permission.ExecuteTrades) {
		t.Fatalf("promoted user still resolved from stale cache")
	}
}

func TestHasPermissionWithoutRole(t *testing.T) {
	store := newStoreTest(t)

	ok, err := store.HasPermission(context.Background(), "nobody", permission.AccessSystem)
	if err != nil {
		t.Fatalf("has permission: %v", err)
	}
	if ok {
		t.Fatalf("user without role has permissions")
	}
}

func TestRoleHierarchyIncludesCustomRoles(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	if err := store.CreateCustomRole(ctx, permission.Definition{
		Name:       "quant",
		ParentRole: permission.RoleAnalyst,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	hierarchy, err := store.RoleHierarchy(ctx)
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if hierarchy["quant"] != permission.RoleAnalyst {
		t.Fatalf("quant parent = %s, want analyst", hierarchy["quant"])
	}
	if hierarchy[permission.RoleAdmin] != permission.RoleManager {
		t.Fatalf("admin parent = %s, want manager", hierarchy[permission.RoleAdmin])
	}
}

func TestHierarchyCycleResolvesToEmptySet(t *testing.T) {
	store := newStoreTest(t)
	ctx := context.Background()

	// Two roles parenting each other cannot be produced through
	// CreateCustomRole; plant the rows directly to simulate a corrupted
	// hierarchy.
	rowA, err := json.Marshal(customRoleRow{
		DisplayName: "Loop A",
		Permissions: []string{string(permission.ViewData)},
		ParentRole:  "loop_b",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rowB, err := json.Marshal(customRoleRow{
		DisplayName: "Loop B",
		ParentRole:  "loop_a",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.redis.HSet(ctx, store.customRolesKey(), "loop_a", rowA, "loop_b", rowB).Err(); err != nil {
		t.Fatalf("plant cycle: %v", err)
	}

	if err := store.AssignRole(ctx, "u-1", "loop_a"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	perms, err := store.UserPermissions(ctx, "u-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(perms) != 0 {
		t.Fatalf("cycle granted permissions: %v", perms)
	}

	ok, err := store.HasPermission(ctx, "u-1", permission.ViewData)
	if err != nil {
		t.Fatalf("has permission: %v", err)
	}
	if ok {
		t.Fatalf("cycle must deny every permission")
	}
}
