package authcore

import (
	"context"
	"fmt"

	"github.com/tradepulse/authcore/security"
)

// ChangePassword rehashes and persists a new password after verifying
// the current one. The new password must pass the strength rules; the
// error names the violated rule.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !e.hasher.Verify(currentPassword, user.PasswordHash) {
		e.metrics.Inc(MetricPasswordChangeRejected)
		e.emitAudit(ctx, AuditEvent{
			Action:   "password_change_failed",
			UserID:   userID,
			Username: user.Username,
			Error:    "current password mismatch",
		})
		return ErrInvalidCredentials
	}

	if ok, reason := security.ValidatePasswordStrength(newPassword); !ok {
		e.metrics.Inc(MetricPasswordChangeRejected)
		return fmt.Errorf("%w: %s", ErrWeakPassword, reason)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.userStore.UpdateFields(ctx, userID, UserFieldUpdate{PasswordHash: &hash}); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, AuditEvent{
		Action:   "password_change",
		UserID:   userID,
		Username: user.Username,
		Success:  true,
	})
	return nil
}

// UpdateProfile sanitizes and persists profile fields for a user.
// Values are encrypted at rest; supplied keys replace existing ones,
// keys not mentioned are kept.
func (e *Engine) UpdateProfile(ctx context.Context, userID string, profile map[string]string) error {
	if len(profile) == 0 {
		return nil
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	sealed, err := e.sealProfile(profile)
	if err != nil {
		return err
	}

	merged := make(map[string]string, len(user.Profile)+len(sealed))
	for k, v := range user.Profile {
		merged[k] = v
	}
	for k, v := range sealed {
		merged[k] = v
	}

	if err := e.userStore.UpdateFields(ctx, userID, UserFieldUpdate{Profile: merged}); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		Action:  "profile_update",
		UserID:  userID,
		Success: true,
	})
	return nil
}

// UpdatePreferences persists preference fields for a user. Preferences
// are caller-visible settings and stored in the clear.
func (e *Engine) UpdatePreferences(ctx context.Context, userID string, prefs map[string]string) error {
	if len(prefs) == 0 {
		return nil
	}

	user, err := e.userStore.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	merged := make(map[string]string, len(user.Preferences)+len(prefs))
	for k, v := range user.Preferences {
		merged[k] = v
	}
	for k, v := range prefs {
		merged[security.SanitizeInput(k)] = security.SanitizeInput(v)
	}

	return e.userStore.UpdateFields(ctx, userID, UserFieldUpdate{Preferences: merged})
}
