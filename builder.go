package authcore

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/authcore/activity"
	"github.com/tradepulse/authcore/internal/audit"
	"github.com/tradepulse/authcore/internal/limiters"
	"github.com/tradepulse/authcore/rbac"
	"github.com/tradepulse/authcore/security"
	"github.com/tradepulse/authcore/session"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	userStore UserStore
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, RBAC, lockout and
// the activity log.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the user persistence layer.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithAuditSink adds an extra sink for audit events, alongside the
// built-in Redis activity log.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build wires and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrInvalidConfig)
	}
	if b.userStore == nil {
		return nil, fmt.Errorf("%w: user store required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := security.NewHasher(security.HashConfig{
		Iterations: cfg.Password.Iterations,
		SaltLength: cfg.Password.SaltLength,
		KeyLength:  cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	key, err := resolveEncryptionKey(cfg.Encryption)
	if err != nil {
		return nil, err
	}
	cipher, err := security.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Pre-derived hash for the unknown-username path, so both invalid
	// credential outcomes cost one KDF round.
	dummyHash, err := hasher.Hash("timing-equalization-placeholder")
	if err != nil {
		return nil, err
	}

	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = cfg.KeyPrefix + ":sess"
	}
	sessionStore := session.NewStore(b.redis, cfg.Session.RedisPrefix)

	engine := &Engine{
		config:       cfg,
		userStore:    b.userStore,
		hasher:       hasher,
		cipher:       cipher,
		dummyHash:    dummyHash,
		sessionStore: sessionStore,
		sessions: session.NewManager(sessionStore, session.ManagerConfig{
			TTL:        cfg.Session.Timeout,
			MaxPerUser: cfg.Session.MaxPerUser,
		}),
		rbac: rbac.NewStore(b.redis, cfg.KeyPrefix+":rbac"),
		guard: limiters.NewLoginGuard(b.redis, limiters.LockoutConfig{
			Enabled:     cfg.Lockout.Enabled,
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Window:      cfg.Lockout.Duration,
			Duration:    cfg.Lockout.Duration,
		}),
		metrics: NewMetrics(cfg.Metrics),
	}

	engine.activityLog = activity.NewLog(b.redis, cfg.KeyPrefix+":act", cfg.Audit.MaxEntriesPerUser)

	sink := audit.Sink(engine.activityLog)
	if b.auditSink != nil {
		sink = audit.MultiSink{engine.activityLog, b.auditSink}
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	b.built = true

	return engine, nil
}
