package authcore

import (
	"context"
	"errors"
	"time"
)

// ValidateSession checks a session against the caller's origin, bumps
// its activity and returns fresh session info. Permissions are resolved
// live on every call, so role changes take effect on the next
// validation without touching existing sessions.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	sess, err := e.sessions.Validate(ctx, sessionID, ClientIPFromContext(ctx), UserAgentFromContext(ctx))
	if err != nil {
		mapped := e.mapSessionError(err)
		if errors.Is(mapped, ErrSessionExpired) {
			e.metrics.Inc(MetricSessionExpired)
		}
		return nil, mapped
	}

	user, err := e.userStore.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, ErrAccountInactive
	}

	return e.composeSessionInfo(ctx, user, sess)
}

// Logout invalidates a session. It is idempotent and reports whether a
// live session was actually closed.
func (e *Engine) Logout(ctx context.Context, sessionID string) (bool, error) {
	userID, closed, err := e.sessions.Invalidate(ctx, sessionID)
	if err != nil {
		return false, e.mapSessionError(err)
	}

	if closed {
		e.metrics.Inc(MetricSessionInvalidated)
		e.emitAudit(ctx, AuditEvent{
			Action:    "logout",
			UserID:    userID,
			SessionID: sessionID,
			Success:   true,
		})
	}
	return closed, nil
}

// LogoutAll closes every session of a user and returns how many were
// open.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	closed, err := e.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return closed, e.mapSessionError(err)
	}

	if closed > 0 {
		e.emitAudit(ctx, AuditEvent{
			Action:  "logout_all",
			UserID:  userID,
			Success: true,
		})
	}
	return closed, nil
}

// ExtendSession pushes a session's expiry out by d from now. Extensions
// are forward-only; a shrinking or no-op extension reports false.
func (e *Engine) ExtendSession(ctx context.Context, sessionID string, d time.Duration) (bool, error) {
	extended, err := e.sessions.Extend(ctx, sessionID, d)
	if err != nil {
		return false, e.mapSessionError(err)
	}
	return extended, nil
}
