package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSigningFailed indicates the underlying signing capability failed.
// Signing failures are fatal for the request and are never retried here.
var ErrSigningFailed = errors.New("token signing failed")

// ErrTokenInvalid indicates a token failed signature or claim validation.
var ErrTokenInvalid = errors.New("invalid token")

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config holds issuer keys and token lifetimes. Access and refresh tokens
// are signed with independent keys so a leaked refresh secret cannot be
// used to forge access tokens.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SigningMethod SigningMethod

	AccessPrivateKey  []byte
	AccessPublicKey   []byte
	RefreshPrivateKey []byte
	RefreshPublicKey  []byte

	Issuer string
	Leeway time.Duration
}

// Claims carries the subject identity, role, and the pair correlation id
// (RegisteredClaims.ID) embedded in every issued token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Pair is one issuance: a short-lived access token and a long-lived
// refresh token sharing CorrelationID.
type Pair struct {
	AccessToken   string
	RefreshToken  string
	CorrelationID string
}

// Manager issues and parses credential pairs. Safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.AccessPrivateKey) == 0 || len(cfg.RefreshPrivateKey) == 0 {
			return nil, errors.New("hs256 requires access and refresh secrets")
		}
	case MethodEd25519:
		for _, key := range [][]byte{cfg.AccessPrivateKey, cfg.RefreshPrivateKey} {
			if _, err := parseEdPrivateKey(key); err != nil {
				return nil, err
			}
		}
		for _, key := range [][]byte{cfg.AccessPublicKey, cfg.RefreshPublicKey} {
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// IssuePair mints a fresh access/refresh pair for the subject. Both tokens
// embed the subject id, role, and a newly generated correlation id. Pure
// apart from the random id; no state is touched.
func (m *Manager) IssuePair(subjectID, role string) (*Pair, error) {
	jti := uuid.NewString()

	access, err := m.sign(subjectID, role, jti, m.config.AccessTTL, m.config.AccessPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	refresh, err := m.sign(subjectID, role, jti, m.config.RefreshTTL, m.config.RefreshPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	return &Pair{
		AccessToken:   access,
		RefreshToken:  refresh,
		CorrelationID: jti,
	}, nil
}

// ParseAccess validates an access token and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.AccessPrivateKey, m.config.AccessPublicKey)
}

// ParseRefresh validates a refresh token and returns its claims.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.config.RefreshPrivateKey, m.config.RefreshPublicKey)
}

func (m *Manager) sign(subjectID, role, jti string, ttl time.Duration, privateKey []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        jti,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(m.method(), claims)

	key, err := m.signKey(privateKey)
	if err != nil {
		return "", err
	}

	return token.SignedString(key)
}

func (m *Manager) parse(tokenStr string, privateKey, publicKey []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey(privateKey, publicKey)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, jwt.ErrTokenInvalidClaims)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or correlation id", ErrTokenInvalid)
	}

	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey(privateKey []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return privateKey, nil
	default:
		return parseEdPrivateKey(privateKey)
	}
}

func (m *Manager) verifyKey(privateKey, publicKey []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return privateKey, nil
	default:
		return parseEdPublicKey(publicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
