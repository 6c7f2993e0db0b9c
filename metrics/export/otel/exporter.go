package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/sessiongate-io/sessiongate"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type counterDef struct {
	id   sessiongate.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{sessiongate.MetricLoginSuccess, "sessiongate_login_success_total", "Successful logins."},
	{sessiongate.MetricLoginFailure, "sessiongate_login_failure_total", "Failed credential checks."},
	{sessiongate.MetricLoginRateLimited, "sessiongate_login_rate_limited_total", "Logins rejected by an active lockout."},
	{sessiongate.MetricLockoutActivated, "sessiongate_lockout_activated_total", "Lockout flag activations."},
	{sessiongate.MetricRefreshSuccess, "sessiongate_refresh_success_total", "Successful token rotations."},
	{sessiongate.MetricRefreshFailure, "sessiongate_refresh_failure_total", "Rejected refresh attempts."},
	{sessiongate.MetricRefreshReuseDetected, "sessiongate_refresh_reuse_detected_total", "Stolen-token reuse detections."},
	{sessiongate.MetricRefreshRateLimited, "sessiongate_refresh_rate_limited_total", "Refreshes rejected by the throttle."},
	{sessiongate.MetricSessionCreated, "sessiongate_session_created_total", "Stored refresh sessions."},
	{sessiongate.MetricSessionRevoked, "sessiongate_session_revoked_total", "Sessions removed through the inventory."},
	{sessiongate.MetricLogout, "sessiongate_logout_total", "Logout operations."},
}

// Source is the engine-side contract the exporter reads from on each
// collection cycle.
type Source interface {
	MetricsSnapshot() sessiongate.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         sessiongate.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter reports engine counters through an OTel Meter.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers the engine's counters on meter.
func NewExporter(meter metric.Meter, engine *sessiongate.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is [NewExporter] over any snapshot source,
// for callers that wrap or fan out the engine's counters.
func NewExporterFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)
	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"sessiongate_audit_dropped_total",
		metric.WithDescription("Audit events dropped by dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
