package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tradepulse/authcore/permission"
)

// CheckPermission reports whether a user's effective permission set
// contains perm. Users without a role hold no permissions.
func (e *Engine) CheckPermission(ctx context.Context, userID string, perm permission.Permission) (bool, error) {
	e.metrics.Inc(MetricPermissionChecks)

	ok, err := e.rbac.HasPermission(ctx, userID, perm)
	if err != nil {
		return false, e.mapRBACError(err)
	}
	if !ok {
		e.metrics.Inc(MetricPermissionDenied)
	}
	return ok, nil
}

// GetPermissions returns a user's effective permissions, resolved
// through the role hierarchy, in stable order.
func (e *Engine) GetPermissions(ctx context.Context, userID string) ([]permission.Permission, error) {
	return e.userPermissions(ctx, userID)
}

// AssignRole gives targetID the named role. The caller must hold the
// manage_users permission.
func (e *Engine) AssignRole(ctx context.Context, adminID, targetID string, role permission.RoleName) error {
	if err := e.requirePermission(ctx, adminID, permission.ManageUsers); err != nil {
		return err
	}

	target, err := e.userStore.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	prevRole, err := e.rbac.UserRole(ctx, targetID)
	hadRole := err == nil
	if err != nil && !errors.Is(err, rbacNoRole) {
		return e.mapRBACError(err)
	}

	if err := e.rbac.AssignRole(ctx, targetID, role); err != nil {
		mapped := e.mapRBACError(err)
		if errors.Is(mapped, ErrRoleNotFound) {
			return fmt.Errorf("%w: %s", ErrInvalidRole, role)
		}
		return mapped
	}

	roleName := string(role)
	if err := e.userStore.UpdateFields(ctx, targetID, UserFieldUpdate{Role: &roleName}); err != nil {
		// Restore the previous assignment so effective permissions and
		// the stored role field stay in step.
		if hadRole {
			if rbErr := e.rbac.AssignRole(ctx, targetID, prevRole); rbErr != nil {
				log.Printf("authcore: role rollback for %s: %v", targetID, rbErr)
			}
		} else if rbErr := e.rbac.RemoveRole(ctx, targetID); rbErr != nil {
			log.Printf("authcore: role rollback for %s: %v", targetID, rbErr)
		}
		return err
	}

	e.metrics.Inc(MetricRoleAssigned)
	e.emitAudit(ctx, AuditEvent{
		Action:   "role_assigned",
		UserID:   targetID,
		Username: target.Username,
		Success:  true,
		Metadata: map[string]string{"role": roleName, "assigned_by": adminID},
	})
	return nil
}

// SetUserStatus changes a user's account status. The caller must hold
// manage_users. Sessions of a deactivated user die on their next
// validation, so no explicit revocation is needed here.
func (e *Engine) SetUserStatus(ctx context.Context, adminID, targetID string, status UserStatus) error {
	if err := e.requirePermission(ctx, adminID, permission.ManageUsers); err != nil {
		return err
	}

	switch status {
	case StatusActive, StatusInactive, StatusSuspended:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	target, err := e.userStore.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if err := e.userStore.UpdateFields(ctx, targetID, UserFieldUpdate{Status: &status}); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		Action:   "status_change",
		UserID:   targetID,
		Username: target.Username,
		Success:  true,
		Metadata: map[string]string{"status": string(status), "changed_by": adminID},
	})
	return nil
}

// DeactivateUser marks a user inactive. Shorthand for SetUserStatus with
// the inactive status.
func (e *Engine) DeactivateUser(ctx context.Context, adminID, targetID string) error {
	return e.SetUserStatus(ctx, adminID, targetID, StatusInactive)
}

// CreateCustomRole registers a new role definition. The caller must hold
// manage_users; the definition's permissions must be known atoms and its
// parent, when set, must resolve.
func (e *Engine) CreateCustomRole(ctx context.Context, adminID string, def permission.Definition) error {
	if err := e.requirePermission(ctx, adminID, permission.ManageUsers); err != nil {
		return err
	}

	if err := e.rbac.CreateCustomRole(ctx, def); err != nil {
		return e.mapRBACError(err)
	}

	e.emitAudit(ctx, AuditEvent{
		Action:   "role_created",
		UserID:   adminID,
		Success:  true,
		Metadata: map[string]string{"role": string(def.Name)},
	})
	return nil
}

// DeleteCustomRole removes a custom role. Built-in roles and roles still
// assigned to users are refused.
func (e *Engine) DeleteCustomRole(ctx context.Context, adminID string, name permission.RoleName) error {
	if err := e.requirePermission(ctx, adminID, permission.ManageUsers); err != nil {
		return err
	}

	if err := e.rbac.DeleteCustomRole(ctx, name); err != nil {
		return e.mapRBACError(err)
	}

	e.emitAudit(ctx, AuditEvent{
		Action:   "role_deleted",
		UserID:   adminID,
		Success:  true,
		Metadata: map[string]string{"role": string(name)},
	})
	return nil
}

// ListRoles returns every known role definition, built in plus custom.
func (e *Engine) ListRoles(ctx context.Context) ([]permission.Definition, error) {
	defs, err := e.rbac.ListRoles(ctx)
	if err != nil {
		return nil, e.mapRBACError(err)
	}
	return defs, nil
}

// ListUsers returns administrative user summaries. The caller needs
// manage_users for the full listing or view_users for the same read-only
// data; filters are applied server side.
func (e *Engine) ListUsers(ctx context.Context, adminID string, filter ListUsersFilter) ([]UserSummary, error) {
	if err := e.requireAnyPermission(ctx, adminID, permission.ManageUsers, permission.ViewUsers); err != nil {
		return nil, err
	}

	users, err := e.userStore.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, UserSummary{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Role:      u.Role,
			Status:    u.Status,
			CreatedAt: u.CreatedAt,
			LastLogin: u.LastLogin,
		})
	}
	return summaries, nil
}

// UserActivity returns recent activity events for a user, newest first.
// Users may read their own trail; reading someone else's requires
// view_users or view_logs.
func (e *Engine) UserActivity(ctx context.Context, callerID, targetID string, limit int) ([]AuditEvent, error) {
	if callerID != targetID {
		if err := e.requireAnyPermission(ctx, callerID, permission.ViewUsers, permission.ViewLogs); err != nil {
			return nil, err
		}
	}

	events, err := e.activityLog.ListByUser(ctx, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return events, nil
}

func (e *Engine) requirePermission(ctx context.Context, userID string, perm permission.Permission) error {
	ok, err := e.CheckPermission(ctx, userID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, userID, perm)
	}
	return nil
}

func (e *Engine) requireAnyPermission(ctx context.Context, userID string, perms ...permission.Permission) error {
	for _, perm := range perms {
		ok, err := e.CheckPermission(ctx, userID, perm)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s lacks required permission", ErrPermissionDenied, userID)
}
