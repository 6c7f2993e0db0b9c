package sessiongate

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sessiongate-io/sessiongate/jwt"
)

// AuthMode selects how clients carry the refresh token.
type AuthMode int

const (
	// AuthModeCookie transports the refresh token in an HTTP-only cookie.
	AuthModeCookie AuthMode = iota
	// AuthModeHeader transports the refresh token in a request header,
	// for clients that cannot use cookies.
	AuthModeHeader
)

// Config is the full engine configuration. Configure once before Build;
// the engine treats it as immutable afterwards.
type Config struct {
	JWT             JWTConfig
	Cookie          CookieConfig
	Lockout         LockoutConfig
	RefreshThrottle ThrottleConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
	AuthMode        AuthMode
}

// JWTConfig holds signing keys and token lifetimes. Access and refresh
// tokens use independent keys.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"

	AccessPrivateKey  []byte
	AccessPublicKey   []byte
	RefreshPrivateKey []byte
	RefreshPublicKey  []byte

	Issuer string
	Leeway time.Duration
}

// CookieConfig shapes the refresh cookie in cookie auth mode.
type CookieConfig struct {
	Name   string
	Domain string
}

// LockoutConfig tunes the failed-login lockout. After MaxAttempts failures
// within Window for one address+identifier pair, further logins are
// rejected for Duration.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
	Duration    time.Duration
}

// ThrottleConfig is a plain sliding-window budget: MaxAttempts per Window.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls the flow counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
		},
		Cookie: CookieConfig{
			Name: "refreshToken",
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
			Duration:    5 * time.Minute,
		},
		RefreshThrottle: ThrottleConfig{
			MaxAttempts: 20,
			Window:      time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		AuthMode: AuthModeCookie,
	}
}

// Validate checks the configuration for internal consistency. Build calls
// it; callers only need it when constructing configs dynamically.
func (c Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256, jwt.MethodEd25519:
	default:
		return fmt.Errorf("unsupported signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.AccessPrivateKey) == 0 || len(c.JWT.RefreshPrivateKey) == 0 {
		return errors.New("access and refresh signing keys required")
	}
	if c.AuthMode == AuthModeCookie && c.Cookie.Name == "" {
		return errors.New("cookie auth mode requires a cookie name")
	}
	if c.Lockout.MaxAttempts <= 0 || c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("lockout attempts, window and duration must be positive")
	}
	if c.RefreshThrottle.MaxAttempts <= 0 || c.RefreshThrottle.Window <= 0 {
		return errors.New("refresh throttle attempts and window must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive when audit is enabled")
	}
	return nil
}

// ConfigFromEnv builds a Config from SESSIONGATE_* environment variables,
// loading a .env file first when present. Unset variables keep their
// defaults.
//
// Recognized variables:
//
//	SESSIONGATE_ACCESS_TOKEN_SECRET   SESSIONGATE_REFRESH_TOKEN_SECRET
//	SESSIONGATE_ACCESS_TTL            SESSIONGATE_REFRESH_TTL
//	SESSIONGATE_SIGNING_METHOD        SESSIONGATE_ISSUER
//	SESSIONGATE_AUTH_MODE             SESSIONGATE_COOKIE_NAME
//	SESSIONGATE_COOKIE_DOMAIN
//	SESSIONGATE_LOCKOUT_MAX_ATTEMPTS  SESSIONGATE_LOCKOUT_WINDOW
//	SESSIONGATE_LOCKOUT_DURATION
//	SESSIONGATE_REFRESH_MAX_ATTEMPTS  SESSIONGATE_REFRESH_WINDOW
//	SESSIONGATE_AUDIT_ENABLED         SESSIONGATE_AUDIT_BUFFER
//	SESSIONGATE_METRICS_ENABLED
//
// Durations use Go syntax ("15m", "168h"). The returned Config is not yet
// validated; Build validates it.
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if v := os.Getenv("SESSIONGATE_ACCESS_TOKEN_SECRET"); v != "" {
		cfg.JWT.AccessPrivateKey = []byte(v)
	}
	if v := os.Getenv("SESSIONGATE_REFRESH_TOKEN_SECRET"); v != "" {
		cfg.JWT.RefreshPrivateKey = []byte(v)
	}
	if v := os.Getenv("SESSIONGATE_SIGNING_METHOD"); v != "" {
		cfg.JWT.SigningMethod = strings.ToLower(v)
	}
	if v := os.Getenv("SESSIONGATE_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("SESSIONGATE_COOKIE_NAME"); v != "" {
		cfg.Cookie.Name = v
	}
	if v := os.Getenv("SESSIONGATE_COOKIE_DOMAIN"); v != "" {
		cfg.Cookie.Domain = v
	}

	if err := envDuration("SESSIONGATE_ACCESS_TTL", &cfg.JWT.AccessTTL); err != nil {
		return cfg, err
	}
	if err := envDuration("SESSIONGATE_REFRESH_TTL", &cfg.JWT.RefreshTTL); err != nil {
		return cfg, err
	}
	if err := envDuration("SESSIONGATE_LOCKOUT_WINDOW", &cfg.Lockout.Window); err != nil {
		return cfg, err
	}
	if err := envDuration("SESSIONGATE_LOCKOUT_DURATION", &cfg.Lockout.Duration); err != nil {
		return cfg, err
	}
	if err := envDuration("SESSIONGATE_REFRESH_WINDOW", &cfg.RefreshThrottle.Window); err != nil {
		return cfg, err
	}
	if err := envInt("SESSIONGATE_LOCKOUT_MAX_ATTEMPTS", &cfg.Lockout.MaxAttempts); err != nil {
		return cfg, err
	}
	if err := envInt("SESSIONGATE_REFRESH_MAX_ATTEMPTS", &cfg.RefreshThrottle.MaxAttempts); err != nil {
		return cfg, err
	}
	if err := envInt("SESSIONGATE_AUDIT_BUFFER", &cfg.Audit.BufferSize); err != nil {
		return cfg, err
	}

	switch v := strings.ToLower(os.Getenv("SESSIONGATE_AUTH_MODE")); v {
	case "", "cookie":
		cfg.AuthMode = AuthModeCookie
	case "header":
		cfg.AuthMode = AuthModeHeader
	default:
		return cfg, fmt.Errorf("unknown auth mode %q", v)
	}

	if v := os.Getenv("SESSIONGATE_AUDIT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SESSIONGATE_AUDIT_ENABLED: %w", err)
		}
		cfg.Audit.Enabled = enabled
	}
	if v := os.Getenv("SESSIONGATE_METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SESSIONGATE_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = enabled
	}

	return cfg, nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessPrivateKey = cloneBytes(cfg.JWT.AccessPrivateKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshPrivateKey = cloneBytes(cfg.JWT.RefreshPrivateKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
