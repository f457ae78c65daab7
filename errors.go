package authcore

import "errors"

// Public error taxonomy. Every failure crossing the engine boundary
// matches one of these sentinels via errors.Is; raw store errors never
// leak past ErrStoreUnavailable.
var (
	// ErrInvalidCredentials is returned identically for an unknown
	// username and for a wrong password, to resist enumeration.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountLocked is returned while an account is locked out after
	// repeated failed logins.
	ErrAccountLocked = errors.New("account locked due to failed login attempts")
	// ErrAccountInactive is returned for users whose status is not active.
	ErrAccountInactive = errors.New("account is not active")
	// ErrUsernameTaken is returned when registration collides on username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken is returned when registration collides on email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrWeakPassword is returned when a password fails the strength
	// rules; the wrapped message names the violated rule.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
	// ErrInvalidRole is returned when a role name does not resolve.
	ErrInvalidRole = errors.New("invalid role")
	// ErrPermissionDenied is returned when the caller lacks the required
	// permission for an operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSessionExpired is returned once a session's expiry has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid is returned for unknown, closed or
	// origin-mismatched sessions.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionLimitExceeded is returned when a user already holds the
	// maximum number of concurrent sessions.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	// ErrRoleNotFound is returned for operations on a role that does not
	// exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleExists is returned when creating a role whose name is taken.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleInUse is returned when deleting a role still assigned to
	// users.
	ErrRoleInUse = errors.New("role is in use")
	// ErrRoleBuiltin is returned when mutating a built-in role.
	ErrRoleBuiltin = errors.New("built-in roles cannot be modified")
	// ErrUserNotFound is returned by lookups for a missing user. Never
	// surfaced on the authentication path.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput is returned when a required field is missing or
	// empty after sanitization.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps any backing-store failure.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrInvalidConfig is returned by Config.Validate and Builder.Build.
	ErrInvalidConfig = errors.New("invalid configuration")
)
