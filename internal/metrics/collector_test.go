package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/hsds-validator/internal/core"
	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	return NewCollector(Config{Namespace: "test", Subsystem: "v"}, prometheus.NewRegistry())
}

func TestCollector_ObserveRun(t *testing.T) {
	c := newTestCollector()

	c.ObserveRun(resources.Service, core.OutcomeValid, 20*time.Millisecond, 0)
	c.ObserveRun(resources.Service, core.OutcomeInvalid, 30*time.Millisecond, 3)
	c.ObserveRun("made_up", core.OutcomeError, time.Millisecond, 0)

	if got := testutil.ToFloat64(c.runs.WithLabelValues("service", "valid")); got != 1 {
		t.Errorf("valid runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.rowErrors.WithLabelValues("service")); got != 3 {
		t.Errorf("row errors = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.runs.WithLabelValues("unknown", "error")); got != 1 {
		t.Errorf("unknown-type runs = %v, want 1", got)
	}
}

func TestCollector_GaugesAndReloads(t *testing.T) {
	c := newTestCollector()

	c.SetInFlight(2)
	if got := testutil.ToFloat64(c.inFlight); got != 2 {
		t.Errorf("in flight = %v, want 2", got)
	}

	c.SchemaReloaded(resources.Phone)
	c.SchemaReloaded("")
	if got := testutil.ToFloat64(c.schemaReloads.WithLabelValues("all")); got != 1 {
		t.Errorf("full reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.schemaReloads.WithLabelValues("phone")); got != 1 {
		t.Errorf("phone reloads = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector()
	c.ObserveRun(resources.Organization, core.OutcomeValid, time.Millisecond, 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_v_runs_total") {
		t.Error("exposition is missing test_v_runs_total")
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector(Config{}, nil)
	c.ObserveRun(resources.Service, core.OutcomeValid, time.Millisecond, 0)

	n, err := testutil.GatherAndCount(c.registry, "hsds_validator_runs_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
}
