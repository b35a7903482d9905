package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", 303, 20*time.Millisecond)
	m.Operation("claim", OutcomeChanged)
	m.StorageFallback("wishes", "save")
	m.Resync("wishes", "ok")
	m.RateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`wunschliste_http_requests_total{code="303",method="POST"} 1`,
		`wunschliste_operations_total{operation="claim",outcome="changed"} 1`,
		`wunschliste_storage_fallbacks_total{collection="wishes",op="save"} 1`,
		`wunschliste_resyncs_total{collection="wishes",result="ok"} 1`,
		`wunschliste_rate_limited_requests_total 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", 200, time.Millisecond)
	m.Operation("x", OutcomeNoop)
	m.StorageFallback("planning", "load")
	m.Resync("planning", "error")
	m.RateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}
