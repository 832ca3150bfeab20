package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// member is one engine counter inside a family, observed under one
// attribute value.
type member struct {
	id    authcore.MetricID
	value string
}

// family groups related engine counters into one instrument keyed by attr.
type family struct {
	name    string
	desc    string
	attr    string
	members []member
}

var families = []family{
	{
		name: "authcore.logins",
		desc: "Login attempts by outcome.",
		attr: "outcome",
		members: []member{
			{authcore.MetricLoginSuccess, "success"},
			{authcore.MetricLoginFailure, "failure"},
			{authcore.MetricLoginLocked, "locked"},
			{authcore.MetricLoginRateLimited, "rate_limited"},
		},
	},
	{
		name: "authcore.authorizations",
		desc: "Authorization checks by outcome.",
		attr: "outcome",
		members: []member{
			{authcore.MetricAuthorizeSuccess, "allowed"},
			{authcore.MetricAuthorizeDenied, "denied"},
			{authcore.MetricTokenInvalid, "token_invalid"},
			{authcore.MetricTokenExpired, "token_expired"},
		},
	},
	{
		name: "authcore.sessions",
		desc: "Session lifecycle events.",
		attr: "event",
		members: []member{
			{authcore.MetricSessionCreated, "created"},
			{authcore.MetricSessionExpired, "expired"},
			{authcore.MetricLogout, "logout"},
		},
	},
	{
		name: "authcore.password_resets",
		desc: "Password reset requests and completions.",
		attr: "stage",
		members: []member{
			{authcore.MetricPasswordResetRequest, "requested"},
			{authcore.MetricPasswordResetConfirmSuccess, "completed"},
			{authcore.MetricPasswordResetConfirmFailure, "rejected"},
		},
	},
	{
		name: "authcore.password_changes",
		desc: "Password changes by outcome.",
		attr: "outcome",
		members: []member{
			{authcore.MetricPasswordChangeSuccess, "success"},
			{authcore.MetricPasswordChangeFailure, "failure"},
		},
	},
	{
		name:    "authcore.rate_limit.rejections",
		desc:    "Requests rejected by the per-client rate gate.",
		members: []member{{id: authcore.MetricRateLimitHit}},
	},
}

var latencies = []struct {
	id   authcore.MetricID
	name string
	desc string
}{
	{authcore.MetricLoginLatency, "authcore.login.duration", "Cumulative login count by latency upper bound in seconds."},
	{authcore.MetricAuthorizeLatency, "authcore.authorize.duration", "Cumulative authorize count by latency upper bound in seconds."},
}

type observedMember struct {
	id   authcore.MetricID
	opts []metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	members    []observedMember
}

type observedLatency struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableGauge
}

// Exporter publishes engine snapshots as OTel observable instruments.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	families     []observedFamily
	latencies    []observedLatency
	auditDropped metric.Int64ObservableCounter
	// bucketOpts[i] carries the le attribute of bucket i, +Inf last.
	bucketOpts []metric.ObserveOption
}

func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource registers one callback on meter that observes every
// instrument from a single snapshot.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, f := range families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.name, err)
		}
		of := observedFamily{instrument: ins}
		for _, m := range f.members {
			om := observedMember{id: m.id}
			if f.attr != "" {
				om.opts = []metric.ObserveOption{
					metric.WithAttributeSet(attribute.NewSet(attribute.String(f.attr, m.value))),
				}
			}
			of.members = append(of.members, om)
		}
		e.families = append(e.families, of)
		observables = append(observables, ins)
	}

	for _, bound := range internaldefs.HistogramUpperBounds {
		le := strconv.FormatFloat(bound, 'f', -1, 64)
		e.bucketOpts = append(e.bucketOpts, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le))))
	}
	e.bucketOpts = append(e.bucketOpts, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", "+Inf"))))

	for _, l := range latencies {
		ins, err := meter.Int64ObservableGauge(l.name, metric.WithDescription(l.desc), metric.WithUnit("{request}"))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", l.name, err)
		}
		e.latencies = append(e.latencies, observedLatency{id: l.id, instrument: ins})
		observables = append(observables, ins)
	}

	dropped, err := meter.Int64ObservableCounter("authcore.audit.dropped", metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, m := range f.members {
			o.ObserveInt64(f.instrument, int64(snap.Counters[m.id]), m.opts...)
		}
	}
	for _, l := range e.latencies {
		raw, ok := snap.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, opt := range e.bucketOpts {
			o.ObserveInt64(l.instrument, int64(cumulative[i]), opt)
		}
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
