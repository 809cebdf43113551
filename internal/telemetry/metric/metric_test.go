package metric

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_ObserveSave(t *testing.T) {
	r := NewRegistry()

	r.ObserveSave("expert-0", 10*time.Millisecond, 128, nil)
	r.ObserveSave("expert-1", 5*time.Millisecond, 0, errors.New("disk full"))

	if got := testutil.ToFloat64(r.SnapshotBytes.WithLabelValues("expert-0")); got != 128 {
		t.Errorf("snapshot_bytes = %v, want 128", got)
	}
	if got := testutil.ToFloat64(r.SaveFailures.WithLabelValues("expert-1")); got != 1 {
		t.Errorf("save_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.SaveFailures.WithLabelValues("expert-0")); got != 0 {
		t.Errorf("save_failures_total(expert-0) = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.LastSuccess.WithLabelValues("expert-0")); got <= 0 {
		t.Errorf("last_success_timestamp_seconds = %v, want > 0", got)
	}
}

func TestRegistry_ObserveCycleAndRestore(t *testing.T) {
	r := NewRegistry()
	r.ObserveCycle(0)
	r.ObserveCycle(2)
	r.ObserveCycle(0)
	r.ObserveRestore("expert-0", RestoreMissing)

	if got := testutil.ToFloat64(r.Cycles.WithLabelValues("ok")); got != 2 {
		t.Errorf("cycles_total{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.Cycles.WithLabelValues("partial")); got != 1 {
		t.Errorf("cycles_total{partial} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.Restores.WithLabelValues("expert-0", RestoreMissing)); got != 1 {
		t.Errorf("restores_total = %v, want 1", got)
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	r.ObserveSave("x", time.Second, 1, nil)
	r.ObserveCycle(1)
	r.ObserveRestore("x", RestoreOK)
	r.MustRegister()
	if r.Handler() == nil {
		t.Error("Handler on nil registry should still return a handler")
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewDiskCollector(func() map[string]int {
		return map[string]int{"expert-0": 3}
	}))
	r.ObserveSave("expert-0", time.Millisecond, 64, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`moeckpt_snapshot_bytes{component="expert-0"} 64`,
		`moeckpt_snapshots_on_disk{component="expert-0"} 3`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
