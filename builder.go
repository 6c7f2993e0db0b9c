package sessiongate

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sessiongate-io/sessiongate/blocklist"
	internalaudit "github.com/sessiongate-io/sessiongate/internal/audit"
	"github.com/sessiongate-io/sessiongate/internal/rate"
	"github.com/sessiongate-io/sessiongate/jwt"
	"github.com/sessiongate-io/sessiongate/tokenstore"
)

// Builder assembles an [Engine]. Configure it with the With* methods and
// call Build once.
type Builder struct {
	config Config

	db    *gorm.DB
	redis redis.UniversalClient

	authenticator Authenticator
	auditSink     AuditSink
	logger        *slog.Logger

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDB sets the SQL handle backing the session inventory. Required.
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	b.db = db
	return b
}

// WithRedis sets the Redis client used for rate limiting and revocation
// blocklisting. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuthenticator sets the credential verifier. Required.
func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.authenticator = a
	return b
}

// WithAuditSink sets the audit event consumer. Optional; when unset and
// audit is enabled, events are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.logger = log
	return b
}

// Build validates the configuration, migrates the session table, and
// returns a ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.db == nil {
		return nil, errors.New("database handle required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.authenticator == nil {
		return nil, errors.New("authenticator required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := tokenstore.Migrate(b.db); err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:         cfg.JWT.AccessTTL,
		RefreshTTL:        cfg.JWT.RefreshTTL,
		SigningMethod:     jwt.SigningMethod(cfg.JWT.SigningMethod),
		AccessPrivateKey:  cloneBytes(cfg.JWT.AccessPrivateKey),
		AccessPublicKey:   cloneBytes(cfg.JWT.AccessPublicKey),
		RefreshPrivateKey: cloneBytes(cfg.JWT.RefreshPrivateKey),
		RefreshPublicKey:  cloneBytes(cfg.JWT.RefreshPublicKey),
		Issuer:            cfg.JWT.Issuer,
		Leeway:            cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = slog.Default()
	}

	engine := &Engine{
		config:    cfg,
		jwt:       jm,
		sessions:  tokenstore.New(b.db),
		blocklist: blocklist.New(b.redis, ""),
		limiter: rate.New(b.redis, rate.Config{
			LoginMaxAttempts:   cfg.Lockout.MaxAttempts,
			LoginWindow:        cfg.Lockout.Window,
			LockoutDuration:    cfg.Lockout.Duration,
			RefreshMaxAttempts: cfg.RefreshThrottle.MaxAttempts,
			RefreshWindow:      cfg.RefreshThrottle.Window,
		}, log),
		metrics:       NewMetrics(cfg.Metrics),
		authenticator: b.authenticator,
		log:           log,
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
