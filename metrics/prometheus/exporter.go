// Package prometheus bridges the engine's in-process counters into a
// prometheus.Collector, so the caller's registry scrapes them without
// the engine depending on a metrics backend.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luminhr/authcore"
)

// EngineStats is the slice of the engine the collector reads. It is
// satisfied by *authcore.Engine.
type EngineStats interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Collector exposes engine counters under the authcore_ namespace. It
// reads a fresh snapshot on every scrape.
type Collector struct {
	source   EngineStats
	outcomes *prometheus.Desc
	dropped  *prometheus.Desc
}

// NewCollector wraps an engine. Register the result with your registry:
//
//	reg.MustRegister(authprom.NewCollector(engine))
func NewCollector(source EngineStats) *Collector {
	return &Collector{
		source: source,
		outcomes: prometheus.NewDesc(
			"authcore_operations_total",
			"Engine operation outcomes by kind.",
			[]string{"outcome"}, nil,
		),
		dropped: prometheus.NewDesc(
			"authcore_audit_dropped_total",
			"Audit events discarded under backpressure.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.outcomes
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.MetricsSnapshot()
	for id, value := range snap.Counters {
		ch <- prometheus.MustNewConstMetric(
			c.outcomes, prometheus.CounterValue, float64(value), outcomeLabel(id))
	}
	ch <- prometheus.MustNewConstMetric(
		c.dropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
}

func outcomeLabel(id authcore.MetricID) string {
	switch id {
	case authcore.MetricLoginSuccess:
		return "login_success"
	case authcore.MetricLoginFailure:
		return "login_failure"
	case authcore.MetricLoginRateLimited:
		return "login_rate_limited"
	case authcore.MetricTwoFactorRequired:
		return "two_factor_required"
	case authcore.MetricTwoFactorSuccess:
		return "two_factor_success"
	case authcore.MetricTwoFactorFailure:
		return "two_factor_failure"
	case authcore.MetricRefreshSuccess:
		return "refresh_success"
	case authcore.MetricRefreshFailure:
		return "refresh_failure"
	case authcore.MetricSwitchSuccess:
		return "switch_success"
	case authcore.MetricSwitchForbidden:
		return "switch_forbidden"
	case authcore.MetricPasswordResetRequest:
		return "password_reset_request"
	case authcore.MetricPasswordResetSuccess:
		return "password_reset_success"
	case authcore.MetricPasswordResetFailure:
		return "password_reset_failure"
	case authcore.MetricPasswordChangeSuccess:
		return "password_change_success"
	case authcore.MetricEmailVerified:
		return "email_verified"
	case authcore.MetricAccountDeactivated:
		return "account_deactivated"
	default:
		return "unknown"
	}
}
