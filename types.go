package authcore

import (
	"context"
	"time"

	"github.com/tradepulse/authcore/internal/audit"
	"github.com/tradepulse/authcore/permission"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
)

// UserRecord is the user row as seen through the UserStore contract. The
// engine owns PasswordHash and Role; Profile and Preferences are opaque
// caller data, stored encrypted when the cipher is configured.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Status       UserStatus
	Profile      map[string]string
	Preferences  map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    time.Time
}

// CreateUserInput carries the fields for a new user row. The store
// assigns ID and timestamps.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Status       UserStatus
	Profile      map[string]string
	Preferences  map[string]string
}

// UserFieldUpdate is a partial update applied by UserStore.UpdateFields.
// Nil pointers leave the corresponding field untouched.
type UserFieldUpdate struct {
	PasswordHash *string
	Role         *string
	Status       *UserStatus
	Profile      map[string]string
	Preferences  map[string]string
	LastLogin    *time.Time
}

// ListUsersFilter narrows UserStore.List. Zero values match everything.
type ListUsersFilter struct {
	Role   string
	Status UserStatus
}

// UserStore is the contract the engine needs from the user persistence
// layer. Implementations must return ErrUserNotFound for missing rows,
// ErrUsernameTaken/ErrEmailTaken on uniqueness violations, and wrap any
// backend failure in ErrStoreUnavailable.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*UserRecord, error)
	GetByUsername(ctx context.Context, username string) (*UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	Create(ctx context.Context, input CreateUserInput) (*UserRecord, error)
	UpdateFields(ctx context.Context, id string, update UserFieldUpdate) error
	List(ctx context.Context, filter ListUsersFilter) ([]*UserRecord, error)
}

// SessionInfo is the composed result of a successful authentication or
// session validation.
type SessionInfo struct {
	UserID      string
	Username    string
	Email       string
	Role        string
	SessionID   string
	ExpiresAt   time.Time
	Permissions []permission.Permission
	RiskScore   int
	Profile     map[string]string
	Preferences map[string]string
}

// UserSummary is the administrative listing view of a user. It never
// carries the password hash.
type UserSummary struct {
	ID        string
	Username  string
	Email     string
	Role      string
	Status    UserStatus
	CreatedAt time.Time
	LastLogin time.Time
}

// SystemStats is a point-in-time operational summary. Collection is best
// effort: fields a backend cannot answer are left zero.
type SystemStats struct {
	TotalUsers         int
	ActiveUsers        int
	InactiveUsers      int
	UsersByRole        map[string]int
	SessionsCreated    int
	SessionsActive     int
	SessionsExpired    int
	FailedLogins       uint64
	AuditEventsDropped uint64
	RedisLatency       time.Duration
}

// AuditEvent is the audit record emitted for security-relevant actions.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = audit.Sink
