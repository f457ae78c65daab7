package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradepulse/authcore/permission"
	"github.com/tradepulse/authcore/security"
	"github.com/tradepulse/authcore/session"
)

// Authenticate verifies credentials and opens a session. Unknown
// usernames and wrong passwords both cost one key derivation and return
// the same ErrInvalidCredentials, so callers cannot enumerate accounts.
// A locked account fails fast with ErrAccountLocked before any
// credential work.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*SessionInfo, error) {
	username = security.SanitizeInput(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	locked, until, err := e.guard.IsLocked(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if locked {
		e.metrics.Inc(MetricLoginLockedOut)
		e.emitAudit(ctx, AuditEvent{
			Action:   "login_failed",
			Username: username,
			Error:    "account locked",
		})
		return nil, fmt.Errorf("%w until %s", ErrAccountLocked, until.UTC().Format(time.RFC3339))
	}

	user, err := e.userStore.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn a KDF round so an unknown username costs the same as
			// a wrong password.
			e.hasher.Verify(password, e.dummyHash)
			return nil, e.failLogin(ctx, username, "")
		}
		return nil, err
	}

	if !e.hasher.Verify(password, user.PasswordHash) {
		return nil, e.failLogin(ctx, username, user.ID)
	}

	if user.Status != StatusActive {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			Action:   "login_failed",
			UserID:   user.ID,
			Username: username,
			Error:    "account inactive",
		})
		return nil, ErrAccountInactive
	}

	if err := e.guard.Clear(ctx, username); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	if err := e.userStore.UpdateFields(ctx, user.ID, UserFieldUpdate{LastLogin: &now}); err != nil {
		return nil, err
	}

	sess, err := e.sessions.Create(ctx, user.ID, ClientIPFromContext(ctx), UserAgentFromContext(ctx))
	if err != nil {
		if errors.Is(err, session.ErrLimitExceeded) {
			e.metrics.Inc(MetricSessionLimitHit)
			return nil, fmt.Errorf("%w: %v", ErrSessionLimitExceeded, err)
		}
		return nil, e.mapSessionError(err)
	}

	info, err := e.composeSessionInfo(ctx, user, sess)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Inc(MetricSessionCreated)
	e.emitAudit(ctx, AuditEvent{
		Action:    "login",
		UserID:    user.ID,
		Username:  username,
		SessionID: sess.ID,
		Success:   true,
	})

	return info, nil
}

// failLogin records a failed attempt against the lockout guard and
// returns the uniform credential error.
func (e *Engine) failLogin(ctx context.Context, username, userID string) error {
	nowLocked, err := e.guard.RecordFailure(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricLoginFailure)
	event := AuditEvent{
		Action:   "login_failed",
		UserID:   userID,
		Username: username,
		Error:    "invalid credentials",
	}
	if nowLocked {
		event.Error = "invalid credentials, account now locked"
	}
	e.emitAudit(ctx, event)

	return ErrInvalidCredentials
}

// composeSessionInfo assembles the result of a successful authentication
// or validation: identity, live-resolved permissions, decrypted profile
// and the session risk score.
func (e *Engine) composeSessionInfo(ctx context.Context, user *UserRecord, sess *session.Session) (*SessionInfo, error) {
	perms, err := e.userPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	profile, err := e.openProfile(user.Profile)
	if err != nil {
		return nil, err
	}

	return &SessionInfo{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        user.Role,
		SessionID:   sess.ID,
		ExpiresAt:   sess.ExpiresAt,
		Permissions: perms,
		RiskScore:   e.sessions.RiskScore(sess, ClientIPFromContext(ctx), UserAgentFromContext(ctx)),
		Profile:     profile,
		Preferences: user.Preferences,
	}, nil
}

// userPermissions resolves a user's effective permissions, treating a
// missing role assignment as the empty set.
func (e *Engine) userPermissions(ctx context.Context, userID string) ([]permission.Permission, error) {
	set, err := e.rbac.UserPermissions(ctx, userID)
	if err != nil {
		if errors.Is(err, rbacNoRole) {
			return nil, nil
		}
		return nil, e.mapRBACError(err)
	}
	return set.Sorted(), nil
}
