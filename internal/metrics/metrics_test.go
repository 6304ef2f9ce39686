package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTurn(t *testing.T) {
	m := New()
	m.RecordTurn("ok", 2*time.Second, 100, 20, 0.6)
	m.RecordTurn("provider_error", time.Second, 0, 0, 0)

	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TokensTotal.WithLabelValues("input")); got != 100 {
		t.Errorf("input tokens = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.CostCentsTotal); got != 0.6 {
		t.Errorf("cost = %v, want 0.6", got)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordToolCall("get_entity", "ok", time.Millisecond)

	if got := testutil.ToFloat64(b.ToolCallsTotal.WithLabelValues("get_entity", "ok")); got != 0 {
		t.Errorf("second instance saw %v tool calls", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordModelCall("ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "dayplan_model_calls_total") {
		t.Errorf("metrics output missing model calls counter")
	}
}
