package prometheus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/luminhr/authcore"
)

type stubStats struct {
	snap    authcore.MetricsSnapshot
	dropped uint64
}

func (s *stubStats) MetricsSnapshot() authcore.MetricsSnapshot { return s.snap }
func (s *stubStats) AuditDropped() uint64                      { return s.dropped }

func TestCollectorExposesCounters(t *testing.T) {
	stats := &stubStats{
		snap: authcore.MetricsSnapshot{Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:    7,
			authcore.MetricLoginFailure:    3,
			authcore.MetricSwitchForbidden: 1,
		}},
		dropped: 2,
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(NewCollector(stats))

	expected := `
# HELP authcore_audit_dropped_total Audit events discarded under backpressure.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 2
# HELP authcore_operations_total Engine operation outcomes by kind.
# TYPE authcore_operations_total counter
authcore_operations_total{outcome="login_failure"} 3
authcore_operations_total{outcome="login_success"} 7
authcore_operations_total{outcome="switch_forbidden"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestOutcomeLabelsAreComplete(t *testing.T) {
	stats := &stubStats{snap: authcore.MetricsSnapshot{Counters: map[authcore.MetricID]uint64{}}}
	for id := range (&authcore.Metrics{}).Snapshot().Counters {
		stats.snap.Counters[id] = 1
	}

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(NewCollector(stats))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "authcore_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetValue() == "unknown" {
					t.Fatal("a metric id has no outcome label")
				}
			}
		}
	}
}
