package authcore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"time"
)

// EncryptionKeyEnv is the environment variable consulted for the
// symmetric encryption key when Config.Encryption.Key is empty. The
// value must be 32 bytes, base64url encoded.
const EncryptionKeyEnv = "AUTHCORE_ENCRYPTION_KEY"

// SessionConfig controls session lifetime and concurrency.
type SessionConfig struct {
	// Timeout is the lifetime of a new session.
	Timeout time.Duration
	// MaxPerUser caps concurrent sessions per user. Zero disables the cap.
	MaxPerUser int
	// SweepInterval is the period of the background expired-session
	// sweeper started by StartSessionSweeper.
	SweepInterval time.Duration
	// RedisPrefix namespaces the session keys.
	RedisPrefix string
}

// LockoutConfig controls the automatic account lockout.
type LockoutConfig struct {
	Enabled     bool
	MaxAttempts int
	Duration    time.Duration
}

// PasswordConfig controls PBKDF2 key derivation.
type PasswordConfig struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// EncryptionConfig controls the AES-GCM field cipher.
type EncryptionConfig struct {
	// Key is the 32-byte symmetric key. When empty the key is read from
	// EncryptionKeyEnv; when that is also empty an ephemeral key is
	// generated and a warning logged, since restart then invalidates all
	// previously encrypted data.
	Key []byte
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// MaxEntriesPerUser caps the Redis activity log per user.
	MaxEntriesPerUser int
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AdminBootstrapConfig supplies the credentials used by EnsureAdminUser
// when no admin account exists yet.
type AdminBootstrapConfig struct {
	Username string
	Email    string
	Password string
}

// Config is the full engine configuration. Obtain a baseline with
// DefaultConfig and override fields before Build.
type Config struct {
	Session    SessionConfig
	Lockout    LockoutConfig
	Password   PasswordConfig
	Encryption EncryptionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Admin      AdminBootstrapConfig

	// KeyPrefix namespaces every Redis key the engine writes.
	KeyPrefix string
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Timeout:       24 * time.Hour,
			MaxPerUser:    5,
			SweepInterval: 5 * time.Minute,
			RedisPrefix:   "ac:sess",
		},
		Lockout: LockoutConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Duration:    30 * time.Minute,
		},
		Password: PasswordConfig{
			Iterations: 100000,
			SaltLength: 32,
			KeyLength:  32,
		},
		Audit: AuditConfig{
			Enabled:           true,
			BufferSize:        1024,
			DropIfFull:        true,
			MaxEntriesPerUser: 500,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		KeyPrefix: "ac",
	}
}

// Validate checks the configuration for values the engine cannot run
// with. All failures wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("%w: session timeout must be positive", ErrInvalidConfig)
	}
	if c.Session.MaxPerUser < 0 {
		return fmt.Errorf("%w: max sessions per user cannot be negative", ErrInvalidConfig)
	}
	if c.Lockout.Enabled {
		if c.Lockout.MaxAttempts <= 0 {
			return fmt.Errorf("%w: lockout max attempts must be positive", ErrInvalidConfig)
		}
		if c.Lockout.Duration <= 0 {
			return fmt.Errorf("%w: lockout duration must be positive", ErrInvalidConfig)
		}
	}
	if c.Password.Iterations < 100000 {
		return fmt.Errorf("%w: password iterations below minimum 100000", ErrInvalidConfig)
	}
	if len(c.Encryption.Key) != 0 && len(c.Encryption.Key) != 32 {
		return fmt.Errorf("%w: encryption key must be 32 bytes", ErrInvalidConfig)
	}
	return nil
}

// resolveEncryptionKey returns the configured key, the environment key,
// or a freshly generated ephemeral key, in that order.
func resolveEncryptionKey(cfg EncryptionConfig) ([]byte, error) {
	if len(cfg.Key) == 32 {
		return cloneBytes(cfg.Key), nil
	}

	if raw := os.Getenv(EncryptionKeyEnv); raw != "" {
		key, err := base64.RawURLEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not valid base64url", ErrInvalidConfig, EncryptionKeyEnv)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("%w: %s must decode to 32 bytes", ErrInvalidConfig, EncryptionKeyEnv)
		}
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	log.Printf("authcore: no encryption key configured, generated ephemeral key; encrypted data will not survive restart")
	return key, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Encryption.Key = cloneBytes(cfg.Encryption.Key)
	return out
}
