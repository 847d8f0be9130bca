package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.StageRows("harmonized", 120)
	r.StageRows("harmonized", 100)
	r.RowsDropped("smoke100_invalid", 3)
	r.RowsDropped("smoke100_invalid", 2)
	r.Fallback("medicaid_expansion", "builtin")
	r.RunFinished("succeeded", 2*time.Second)

	if v := testutil.ToFloat64(r.stageRows.WithLabelValues("harmonized")); v != 100 {
		t.Fatalf("stage rows: %v", v)
	}
	if v := testutil.ToFloat64(r.dropped.WithLabelValues("smoke100_invalid")); v != 5 {
		t.Fatalf("dropped: %v", v)
	}
	if v := testutil.ToFloat64(r.fallbacks.WithLabelValues("medicaid_expansion", "builtin")); v != 1 {
		t.Fatalf("fallbacks: %v", v)
	}
	if v := testutil.ToFloat64(r.runs.WithLabelValues("succeeded")); v != 1 {
		t.Fatalf("runs: %v", v)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "cessation_run_duration_seconds_count 1") {
		t.Fatalf("exposition missing histogram:\n%s", body)
	}
}

func TestNopSatisfiesObserver(t *testing.T) {
	var o Observer = Nop{}
	o.StageRows("x", 1)
	o.RunFinished("failed", time.Millisecond)
}
