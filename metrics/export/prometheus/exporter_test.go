package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrEthical07/pmscanauth"
)

type fakeSource struct {
	snapshot pmscanauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() pmscanauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: pmscanauth.MetricsSnapshot{
			Counters:   map[pmscanauth.MetricID]uint64{},
			Histograms: map[pmscanauth.MetricID][]uint64{},
		},
	})

	if got := scrape(t, c); strings.Contains(got, "pmscanauth_") {
		t.Fatalf("expected no engine series for disabled metrics, got:\n%s", got)
	}
}

func TestCollectIncludesCounterAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: pmscanauth.MetricsSnapshot{
			Counters: map[pmscanauth.MetricID]uint64{
				pmscanauth.MetricLoginSuccess: 7,
			},
			Histograms: map[pmscanauth.MetricID][]uint64{
				pmscanauth.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := scrape(t, c)
	for _, want := range []string{
		"pmscanauth_login_success_total 7",
		"pmscanauth_logout_total 0",
		`pmscanauth_authenticate_latency_seconds_bucket{le="0.005"} 1`,
		`pmscanauth_authenticate_latency_seconds_bucket{le="0.5"} 28`,
		`pmscanauth_authenticate_latency_seconds_bucket{le="+Inf"} 36`,
		"pmscanauth_authenticate_latency_seconds_count 36",
		"pmscanauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestCollectorRegistersCleanly(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollectorFromSource(fakeSource{
		snapshot: pmscanauth.MetricsSnapshot{
			Counters: map[pmscanauth.MetricID]uint64{pmscanauth.MetricRefreshSuccess: 1},
		},
	})
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, mf := range families {
		if mf.GetName() == "pmscanauth_refresh_success_total" {
			found = mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Fatal("expected refresh success counter with value 1")
	}
}
