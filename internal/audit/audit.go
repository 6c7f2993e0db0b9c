package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Actions recorded by the engine flows. The set is closed: sinks may rely
// on never seeing any other value. ActionRoleUpdated is part of the
// contract for host applications that change a subject's role out of band;
// the engine itself never emits it.
const (
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionRefreshReuse = "refresh_token_reuse_detected"
	ActionTokenRevoked = "token_revoked"
	ActionRoleUpdated  = "role_updated"
)

// Event is the canonical audit record produced by engine flows.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	SubjectID string            `json:"subject_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
