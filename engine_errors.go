package authcore

import (
	"errors"
	"fmt"

	"github.com/tradepulse/authcore/permission"
	"github.com/tradepulse/authcore/rbac"
	"github.com/tradepulse/authcore/session"
)

// rbacNoRole aliases the rbac sentinel so flow code reads cleanly.
var rbacNoRole = rbac.ErrNoRoleAssigned

// mapRBACError translates rbac store sentinels into the public taxonomy.
func (e *Engine) mapRBACError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rbac.ErrRoleNotFound):
		return fmt.Errorf("%w: %v", ErrRoleNotFound, err)
	case errors.Is(err, rbac.ErrRoleExists):
		return fmt.Errorf("%w: %v", ErrRoleExists, err)
	case errors.Is(err, rbac.ErrRoleBuiltin):
		return fmt.Errorf("%w: %v", ErrRoleBuiltin, err)
	case errors.Is(err, rbac.ErrRoleInUse):
		return fmt.Errorf("%w: %v", ErrRoleInUse, err)
	case errors.Is(err, rbac.ErrInvalidPermission):
		return fmt.Errorf("%w: %v", ErrInvalidRole, err)
	case errors.Is(err, permission.ErrRoleCycle):
		return fmt.Errorf("%w: %v", ErrInvalidRole, err)
	case errors.Is(err, rbac.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

// mapSessionError translates session package sentinels into the public
// taxonomy.
func (e *Engine) mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrInactive),
		errors.Is(err, session.ErrOriginMismatch),
		errors.Is(err, session.ErrAgentMismatch):
		return ErrSessionInvalid
	case errors.Is(err, session.ErrLimitExceeded):
		return fmt.Errorf("%w: %v", ErrSessionLimitExceeded, err)
	case errors.Is(err, session.ErrStoreUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
