package authcore

import (
	"context"
	"time"

	"github.com/tradepulse/authcore/activity"
	"github.com/tradepulse/authcore/internal/audit"
	"github.com/tradepulse/authcore/internal/limiters"
	"github.com/tradepulse/authcore/rbac"
	"github.com/tradepulse/authcore/security"
	"github.com/tradepulse/authcore/session"
)

// Engine is the authentication and authorization core. Construct it with
// the Builder; one Engine is safe for concurrent use by any number of
// goroutines.
type Engine struct {
	config Config

	userStore UserStore
	hasher    *security.Hasher
	cipher    *security.Cipher
	dummyHash string

	sessionStore *session.Store
	sessions     *session.Manager
	rbac         *rbac.Store
	guard        *limiters.LoginGuard
	activityLog  *activity.Log

	audit   *audit.Dispatcher
	metrics *Metrics
}

// Close drains the audit dispatcher. Call it on shutdown after all
// in-flight operations have finished.
func (e *Engine) Close() {
	e.audit.Close()
}

// Metrics returns the engine's metrics recorder.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// MetricsSnapshot copies the engine's counters for export bridges.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher discarded
// under backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// Config returns a copy of the engine's effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	event.Timestamp = time.Now().UTC()
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = UserAgentFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}
