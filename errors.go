package sessiongate

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied identifier or
	// password does not match an account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned while a login lockout is active for
	// the caller's address and identifier.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when the caller's address exceeds
	// the refresh budget for the current window.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshReuse is returned when an already-rotated refresh token is
	// presented again. All sessions for the subject are revoked first.
	ErrRefreshReuse = errors.New("refresh token reuse detected, re-authentication required")
	// ErrSessionNotFound is returned when a session id does not exist or
	// does not belong to the requesting subject.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned for tokens that fail signature or claim
	// validation, including expired tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned for access tokens that were revoked
	// before their natural expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or after Close.
	ErrEngineNotReady = errors.New("engine not initialized")
)
