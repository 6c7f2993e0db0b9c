package sessiongate

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sessiongate-io/sessiongate/blocklist"
	internalaudit "github.com/sessiongate-io/sessiongate/internal/audit"
	"github.com/sessiongate-io/sessiongate/internal/rate"
	"github.com/sessiongate-io/sessiongate/jwt"
	"github.com/sessiongate-io/sessiongate/tokenstore"
)

// Engine is the credential lifecycle coordinator: it issues paired tokens,
// rotates refresh tokens with reuse detection, maintains the session
// inventory, and enforces login and refresh abuse controls. Construct it
// with [Builder]; safe for concurrent use.
type Engine struct {
	config        Config
	jwt           *jwt.Manager
	sessions      *tokenstore.Store
	blocklist     *blocklist.Blocklist
	limiter       *rate.Limiter
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	authenticator Authenticator
	log           *slog.Logger
}

// Login verifies credentials and issues a fresh token pair. The presented
// refresh token, when given, replaces its session; a presented token that
// is unknown to the inventory is treated as evidence of theft and every
// session for the subject is revoked before the new one is created.
//
// Failed attempts count toward the per-address lockout regardless of
// whether the identifier exists.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.limiter.CheckLogin(ctx, req.Meta.IP, req.Identifier); err != nil {
		e.metrics.Inc(MetricLoginRateLimited)
		return nil, ErrLoginRateLimited
	}

	identity, err := e.authenticator.Authenticate(ctx, req.Identifier, req.Password)
	if err != nil {
		if e.limiter.RecordLoginFailure(ctx, req.Meta.IP, req.Identifier) {
			e.metrics.Inc(MetricLockoutActivated)
		}
		e.metrics.Inc(MetricLoginFailure)
		e.emit(internalaudit.Event{
			Action:    internalaudit.ActionLoginFailure,
			IP:        req.Meta.IP,
			UserAgent: req.Meta.UserAgent,
			Details:   map[string]string{"identifier": req.Identifier},
		})
		return nil, ErrInvalidCredentials
	}

	var details map[string]string
	if req.PresentedRefreshToken != "" {
		replaced, err := e.sessions.DeleteByToken(ctx, req.PresentedRefreshToken)
		if err != nil {
			return nil, err
		}
		if replaced == nil {
			// The client held a refresh token the inventory does not know.
			// Either it was already consumed by a thief or the inventory
			// was cleared; both call for a full purge.
			purged, err := e.sessions.DeleteAllByOwner(ctx, identity.ID)
			if err != nil {
				return nil, err
			}
			e.log.Warn("unknown refresh token presented at login, sessions purged",
				"subject", identity.ID, "purged", purged)
			details = map[string]string{
				"warning":         "unknown_refresh_token_purged",
				"purged_sessions": strconv.FormatInt(purged, 10),
			}
		}
	}

	pair, rec, err := e.issueAndStore(ctx, identity, req.Meta)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.metrics.Inc(MetricSessionCreated)
	e.emit(internalaudit.Event{
		Action:    internalaudit.ActionLoginSuccess,
		SubjectID: identity.ID,
		SessionID: rec.ID,
		IP:        req.Meta.IP,
		UserAgent: req.Meta.UserAgent,
		Details:   details,
	})

	return pair, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a
// fresh pair with a new correlation id is issued. Presenting a token that
// was already rotated revokes every session for its subject and returns
// [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*TokenPair, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.limiter.CheckRefresh(ctx, meta.IP); err != nil {
		e.metrics.Inc(MetricRefreshRateLimited)
		return nil, ErrRefreshRateLimited
	}

	claims, err := e.jwt.ParseRefresh(refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	}
	identity := Identity{ID: claims.Subject, Role: claims.Role}

	rec, err := e.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, e.handleReuse(ctx, identity.ID, meta)
	}

	if err := e.sessions.MarkUsed(ctx, refreshToken); err != nil {
		return nil, err
	}

	// The delete is the rotation's atomic step: of two concurrent calls
	// with the same token only one gets the record back.
	consumed, err := e.sessions.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if consumed == nil {
		return nil, e.handleReuse(ctx, identity.ID, meta)
	}

	pair, _, err := e.issueAndStore(ctx, identity, meta)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.metrics.Inc(MetricSessionCreated)

	return pair, nil
}

// Logout revokes the holding session and blocklists the access token for
// its remaining lifetime. When no refresh token is given, every session
// for the subject is removed instead, since the holding one cannot be
// singled out.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string, meta RequestMeta) error {
	if e == nil || e.jwt == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		return ErrTokenInvalid
	}

	if refreshToken != "" {
		// A missing record here is fine: the session may already be gone.
		if _, err := e.sessions.DeleteByToken(ctx, refreshToken); err != nil {
			return err
		}
	} else {
		if _, err := e.sessions.DeleteAllByOwner(ctx, claims.Subject); err != nil {
			return err
		}
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if err := e.blocklist.Add(ctx, claims.ID, remaining); err != nil {
		return err
	}

	e.metrics.Inc(MetricLogout)
	e.emit(internalaudit.Event{
		Action:    internalaudit.ActionTokenRevoked,
		SubjectID: claims.Subject,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Details:   map[string]string{"correlation_id": claims.ID},
	})

	return nil
}

// VerifyAccess validates an access token and returns the identity it
// carries. Revoked tokens fail with [ErrTokenRevoked] even while their
// signature is still valid.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (Identity, error) {
	if e == nil || e.jwt == nil {
		return Identity{}, ErrEngineNotReady
	}

	claims, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		return Identity{}, ErrTokenInvalid
	}

	blocked, err := e.blocklist.Contains(ctx, claims.ID)
	if err != nil {
		return Identity{}, err
	}
	if blocked {
		return Identity{}, ErrTokenRevoked
	}

	return Identity{ID: claims.Subject, Role: claims.Role}, nil
}

// ListSessions returns the subject's live sessions, oldest first. Token
// values are never included.
func (e *Engine) ListSessions(ctx context.Context, subjectID string) ([]Session, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	recs, err := e.sessions.FindAllByOwner(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, sessionFromRecord(rec))
	}
	return out, nil
}

// RevokeSession removes one of the subject's sessions by id. Revoking a
// session that does not exist, or that belongs to someone else, fails
// with [ErrSessionNotFound].
func (e *Engine) RevokeSession(ctx context.Context, subjectID, sessionID string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	ok, err := e.sessions.DeleteByID(ctx, subjectID, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}

	e.metrics.Inc(MetricSessionRevoked)
	e.emit(internalaudit.Event{
		Action:    internalaudit.ActionTokenRevoked,
		SubjectID: subjectID,
		SessionID: sessionID,
		Details:   map[string]string{"reason": "revoked_by_subject"},
	})

	return nil
}

// RevokeOtherSessions keeps the subject's most recently active session and
// removes the rest, returning the ids of the removed sessions. With one or
// zero sessions it is a no-op.
func (e *Engine) RevokeOtherSessions(ctx context.Context, subjectID string) ([]string, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	recs, err := e.sessions.FindAllByOwner(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if len(recs) <= 1 {
		return nil, nil
	}

	current := recs[0]
	for _, rec := range recs[1:] {
		switch a, b := lastActivity(rec), lastActivity(current); {
		case a.After(b):
			current = rec
		case a.Equal(b) && rec.ID < current.ID:
			current = rec
		}
	}

	revoked := make([]string, 0, len(recs)-1)
	for _, rec := range recs {
		if rec.ID != current.ID {
			revoked = append(revoked, rec.ID)
		}
	}

	if _, err := e.sessions.DeleteOthers(ctx, subjectID, current.ID); err != nil {
		return nil, err
	}

	for range revoked {
		e.metrics.Inc(MetricSessionRevoked)
	}
	e.emit(internalaudit.Event{
		Action:    internalaudit.ActionTokenRevoked,
		SubjectID: subjectID,
		Details: map[string]string{
			"reason":           "revoke_others",
			"revoked_sessions": strings.Join(revoked, ","),
		},
	})

	return revoked, nil
}

// Close drains the audit dispatcher. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all flow counters. See
// the metrics/export packages for exporter bindings.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// issueAndStore mints a pair and records its refresh half. A duplicate
// token value is retried once with a freshly minted pair.
func (e *Engine) issueAndStore(ctx context.Context, identity Identity, meta RequestMeta) (*TokenPair, *tokenstore.Record, error) {
	for attempt := 0; attempt < 2; attempt++ {
		pair, err := e.jwt.IssuePair(identity.ID, identity.Role)
		if err != nil {
			return nil, nil, err
		}

		rec, err := e.sessions.Create(ctx, identity.ID, pair.RefreshToken, tokenstore.Meta{
			CorrelationID: pair.CorrelationID,
			IP:            meta.IP,
			UserAgent:     meta.UserAgent,
		})
		if err != nil {
			if errors.Is(err, tokenstore.ErrDuplicateToken) && attempt == 0 {
				continue
			}
			return nil, nil, err
		}

		return &TokenPair{
			AccessToken:   pair.AccessToken,
			RefreshToken:  pair.RefreshToken,
			CorrelationID: pair.CorrelationID,
		}, rec, nil
	}

	return nil, nil, tokenstore.ErrDuplicateToken
}

// handleReuse is the stolen-token response: every session for the subject
// is revoked and the caller is forced to re-authenticate.
func (e *Engine) handleReuse(ctx context.Context, subjectID string, meta RequestMeta) error {
	purged, err := e.sessions.DeleteAllByOwner(ctx, subjectID)
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricRefreshReuseDetected)
	e.metrics.Inc(MetricRefreshFailure)
	e.log.Warn("refresh token reuse detected, all sessions revoked",
		"subject", subjectID, "purged", purged)
	e.emit(internalaudit.Event{
		Action:    internalaudit.ActionRefreshReuse,
		SubjectID: subjectID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Details:   map[string]string{"revoked_sessions": "all"},
	})

	return ErrRefreshReuse
}

func (e *Engine) emit(event internalaudit.Event) {
	event.Timestamp = time.Now().UTC()
	e.audit.Emit(event)
}

func sessionFromRecord(rec tokenstore.Record) Session {
	return Session{
		ID:            rec.ID,
		CorrelationID: rec.CorrelationID,
		IP:            rec.IP,
		UserAgent:     rec.UserAgent,
		CreatedAt:     rec.CreatedAt,
		LastUsedAt:    rec.LastUsedAt,
	}
}

func lastActivity(rec tokenstore.Record) time.Time {
	if !rec.LastUsedAt.IsZero() {
		return rec.LastUsedAt
	}
	return rec.CreatedAt
}
