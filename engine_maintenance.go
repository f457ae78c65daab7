package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tradepulse/authcore/permission"
	"github.com/tradepulse/authcore/security"
)

// SystemStatistics aggregates user, session and security counters. It is
// best effort: unavailable backends leave their fields zero rather than
// failing the whole report.
func (e *Engine) SystemStatistics(ctx context.Context) SystemStats {
	stats := SystemStats{
		UsersByRole:        make(map[string]int),
		FailedLogins:       e.metrics.Value(MetricLoginFailure),
		AuditEventsDropped: e.audit.Dropped(),
	}

	users, err := e.userStore.List(ctx, ListUsersFilter{})
	if err != nil {
		log.Printf("authcore: statistics user listing: %v", err)
	} else {
		stats.TotalUsers = len(users)
		for _, u := range users {
			stats.UsersByRole[u.Role]++
			if u.Status == StatusActive {
				stats.ActiveUsers++
			} else {
				stats.InactiveUsers++
			}
		}
	}

	sessStats, err := e.sessions.Statistics(ctx)
	if err != nil {
		log.Printf("authcore: statistics session counts: %v", err)
	} else {
		stats.SessionsCreated = sessStats.Created
		stats.SessionsActive = sessStats.Active
		stats.SessionsExpired = sessStats.Expired
	}

	if latency, err := e.sessionStore.Ping(ctx); err == nil {
		stats.RedisLatency = latency
	}

	return stats
}

// EnsureAdminUser guarantees at least one account holds the admin role,
// creating one from the bootstrap configuration when none exists. It is
// a startup invariant: call it once after Build.
func (e *Engine) EnsureAdminUser(ctx context.Context) error {
	holders, err := e.rbac.UsersWithRole(ctx, permission.RoleAdmin)
	if err != nil {
		return e.mapRBACError(err)
	}
	if len(holders) > 0 {
		return nil
	}

	cfg := e.config.Admin
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	if cfg.Email == "" {
		cfg.Email = "admin@localhost"
	}
	if cfg.Password == "" {
		token, err := security.SecureToken(24)
		if err != nil {
			return err
		}
		cfg.Password = token
		log.Printf("authcore: bootstrap admin %q created with a generated password; rotate it immediately", cfg.Username)
	}

	// The account may exist from a previous run with its role assignment
	// lost; re-point it instead of failing on the username collision.
	existing, err := e.userStore.GetByUsername(ctx, cfg.Username)
	if err == nil {
		if err := e.rbac.AssignRole(ctx, existing.ID, permission.RoleAdmin); err != nil {
			return e.mapRBACError(err)
		}
		role := string(permission.RoleAdmin)
		return e.userStore.UpdateFields(ctx, existing.ID, UserFieldUpdate{Role: &role})
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := e.hasher.Hash(cfg.Password)
	if err != nil {
		return err
	}

	user, err := e.userStore.Create(ctx, CreateUserInput{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: hash,
		Role:         string(permission.RoleAdmin),
		Status:       StatusActive,
	})
	if err != nil {
		return err
	}

	if err := e.rbac.AssignRole(ctx, user.ID, permission.RoleAdmin); err != nil {
		return e.mapRBACError(err)
	}

	e.emitAudit(ctx, AuditEvent{
		Action:   "admin_bootstrap",
		UserID:   user.ID,
		Username: user.Username,
		Success:  true,
	})
	return nil
}

// SweepExpiredSessions invalidates sessions whose expiry has passed and
// returns how many were closed. Idempotent; overlapping sweeps are safe.
func (e *Engine) SweepExpiredSessions(ctx context.Context) (int, error) {
	swept, err := e.sessions.SweepExpired(ctx, 1000)
	if err != nil {
		return swept, e.mapSessionError(err)
	}
	for i := 0; i < swept; i++ {
		e.metrics.Inc(MetricSessionSwept)
	}
	return swept, nil
}

// StartSessionSweeper runs SweepExpiredSessions on the configured
// interval until ctx is cancelled. Run it in its own goroutine.
func (e *Engine) StartSessionSweeper(ctx context.Context) {
	interval := e.config.Session.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.SweepExpiredSessions(ctx); err != nil {
				log.Printf("authcore: session sweep: %v", err)
			}
		}
	}
}
