package sessiongate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/sessiongate-io/sessiongate/internal/audit"
)

// Identity is the authenticated subject carried by every issued token.
type Identity struct {
	ID   string
	Role string
}

// Authenticator is the interface callers must implement to integrate the
// engine with their account database. Authenticate returns the subject's
// identity when identifier and password match, or an error otherwise. Any
// error counts as a failed attempt toward the login lockout.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (Identity, error)
}

// RequestMeta carries per-request client context used for rate limiting
// and audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginRequest is the input for [Engine.Login]. PresentedRefreshToken is
// the refresh token the client already holds, if any; the engine uses it
// to replace the old session and to spot stolen tokens.
type LoginRequest struct {
	Identifier            string
	Password              string
	PresentedRefreshToken string
	Meta                  RequestMeta
}

// TokenPair is one issued credential pair. Both tokens share CorrelationID.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	CorrelationID string
}

// Session describes one live refresh session, as returned by
// [Engine.ListSessions]. The refresh token value itself is never exposed.
type Session struct {
	ID            string
	CorrelationID string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
	LastUsedAt    time.Time
}

// Audit actions carried by [AuditEvent]. The set is closed; sinks never
// see any other value. The engine emits every action but AuditRoleUpdated,
// which host applications emit themselves when a subject's role changes
// out of band.
const (
	AuditLoginSuccess = internalaudit.ActionLoginSuccess
	AuditLoginFailure = internalaudit.ActionLoginFailure
	AuditRefreshReuse = internalaudit.ActionRefreshReuse
	AuditTokenRevoked = internalaudit.ActionTokenRevoked
	AuditRoleUpdated  = internalaudit.ActionRoleUpdated
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// KafkaSink is an [AuditSink] that publishes events to a Kafka topic.
type KafkaSink = internalaudit.KafkaSink

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewKafkaSink creates a [KafkaSink] publishing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return internalaudit.NewKafkaSink(brokers, topic)
}
