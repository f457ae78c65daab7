package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tradepulse/authcore/permission"
	"github.com/tradepulse/authcore/security"
)

// Register creates a new user with the default user role. Text inputs
// are sanitized, the password must pass the strength rules, and username
// and email must be unused.
func (e *Engine) Register(ctx context.Context, username, email, password string, profile map[string]string) (*UserSummary, error) {
	username = security.SanitizeInput(username)
	email = security.SanitizeInput(email)
	if username == "" || email == "" {
		e.metrics.Inc(MetricRegisterRejected)
		return nil, fmt.Errorf("%w: username and email required", ErrInvalidInput)
	}

	if ok, reason := security.ValidatePasswordStrength(password); !ok {
		e.metrics.Inc(MetricRegisterRejected)
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, reason)
	}

	if _, err := e.userStore.GetByUsername(ctx, username); err == nil {
		e.metrics.Inc(MetricRegisterRejected)
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := e.userStore.GetByEmail(ctx, email); err == nil {
		e.metrics.Inc(MetricRegisterRejected)
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	sealed, err := e.sealProfile(profile)
	if err != nil {
		return nil, err
	}

	user, err := e.userStore.Create(ctx, CreateUserInput{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         string(permission.RoleUser),
		Status:       StatusActive,
		Profile:      sealed,
	})
	if err != nil {
		e.metrics.Inc(MetricRegisterRejected)
		return nil, err
	}

	if err := e.rbac.AssignRole(ctx, user.ID, permission.RoleUser); err != nil {
		// The row exists but holds no role assignment. Park the account
		// inactive so it cannot log in half-configured; a later
		// registration retry or an admin can reactivate it.
		status := StatusInactive
		if updErr := e.userStore.UpdateFields(ctx, user.ID, UserFieldUpdate{Status: &status}); updErr != nil {
			log.Printf("authcore: register rollback for %s: %v", user.ID, updErr)
		}
		return nil, e.mapRBACError(err)
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, AuditEvent{
		Action:   "register",
		UserID:   user.ID,
		Username: user.Username,
		Success:  true,
	})

	return &UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Status:    user.Status,
		CreatedAt: user.CreatedAt,
	}, nil
}

// sealProfile sanitizes and encrypts profile values for storage.
func (e *Engine) sealProfile(profile map[string]string) (map[string]string, error) {
	if len(profile) == 0 {
		return nil, nil
	}
	sealed := make(map[string]string, len(profile))
	for k, v := range profile {
		enc, err := e.cipher.Encrypt(security.SanitizeInput(v))
		if err != nil {
			return nil, err
		}
		sealed[security.SanitizeInput(k)] = enc
	}
	return sealed, nil
}

// openProfile decrypts stored profile values. Decryption is fail closed:
// one undecryptable value fails the whole read.
func (e *Engine) openProfile(sealed map[string]string) (map[string]string, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	profile := make(map[string]string, len(sealed))
	for k, v := range sealed {
		plain, err := e.cipher.Decrypt(v)
		if err != nil {
			return nil, err
		}
		profile[k] = plain
	}
	return profile, nil
}
