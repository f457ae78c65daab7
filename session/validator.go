package session

import (
	"errors"
	"fmt"
	"time"
)

// Validation failure sentinels. The engine maps these onto its public
// error taxonomy at the trust boundary.
var (
	ErrExpired        = errors.New("session has expired")
	ErrInactive       = errors.New("session is not active")
	ErrOriginMismatch = errors.New("session origin mismatch")
	ErrAgentMismatch  = errors.New("session agent mismatch")
	ErrLimitExceeded  = errors.New("session limit exceeded")
)

// Risk score weights. Advisory telemetry only, never a gate.
const (
	riskOriginMismatch = 30
	riskAgentMismatch  = 20
	riskAgeOver12h     = 15
	riskAgeOver24h     = 25
	riskIdleOver1h     = 10
	riskIdleOver4h     = 20
	riskCap            = 100
)

// Validator holds the stateless session decision rules.
type Validator struct {
	MaxSessionsPerUser int
}

// IsExpired reports whether the session's expiry has passed at now.
func (Validator) IsExpired(sess *Session, now time.Time) bool {
	return now.After(sess.ExpiresAt)
}

// Validate applies the security checks to a session value: expiry, the
// active flag, and origin/agent consistency against the values recorded
// at creation. Origin and agent are soft checks: an empty supplied value
// is never a mismatch.
func (v Validator) Validate(sess *Session, ip, agent string, now time.Time) error {
	if v.IsExpired(sess, now) {
		return ErrExpired
	}
	if !sess.Active {
		return ErrInactive
	}
	if ip != "" && sess.IPAddress != "" && ip != sess.IPAddress {
		return ErrOriginMismatch
	}
	if agent != "" && sess.UserAgent != "" && agent != sess.UserAgent {
		return ErrAgentMismatch
	}
	return nil
}

// RiskScore computes an additive 0–100 heuristic for the session given
// the caller's current origin and agent.
func (Validator) RiskScore(sess *Session, ip, agent string, now time.Time) int {
	score := 0

	if ip != "" && sess.IPAddress != "" && ip != sess.IPAddress {
		score += riskOriginMismatch
	}
	if agent != "" && sess.UserAgent != "" && agent != sess.UserAgent {
		score += riskAgentMismatch
	}

	if !sess.CreatedAt.IsZero() {
		age := now.Sub(sess.CreatedAt)
		if age > 12*time.Hour {
			score += riskAgeOver12h
		}
		if age > 24*time.Hour {
			score += riskAgeOver24h
		}
	}

	if !sess.LastActivity.IsZero() {
		idle := now.Sub(sess.LastActivity)
		if idle > time.Hour {
			score += riskIdleOver1h
		}
		if idle > 4*time.Hour {
			score += riskIdleOver4h
		}
	}

	if score > riskCap {
		score = riskCap
	}
	return score
}

// ValidateSessionCount enforces the per-user concurrent session limit.
func (v Validator) ValidateSessionCount(current int) error {
	if v.MaxSessionsPerUser > 0 && current >= v.MaxSessionsPerUser {
		return fmt.Errorf("%w: maximum %d sessions per user", ErrLimitExceeded, v.MaxSessionsPerUser)
	}
	return nil
}

// CheckActivity reports whether the session has been idle longer than
// maxInactivity at now.
func (Validator) CheckActivity(sess *Session, maxInactivity time.Duration, now time.Time) error {
	if sess.LastActivity.IsZero() {
		return ErrInactive
	}
	if now.Sub(sess.LastActivity) > maxInactivity {
		return fmt.Errorf("%w: idle longer than %s", ErrInactive, maxInactivity)
	}
	return nil
}
