package healthserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeStatus struct {
	preconfer bool
	submitter bool
	queued    int
	failures  uint64
}

func (f fakeStatus) IsPreconfer() bool            { return f.preconfer }
func (f fakeStatus) IsSubmitter() bool            { return f.submitter }
func (f fakeStatus) QueuedBatches() int           { return f.queued }
func (f fakeStatus) WatchdogFailureStreak() uint64 { return f.failures }

func TestHealthz(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("GET /healthz body = %q, want ok", rec.Body.String())
	}
}

func TestStatus_NilProviderReturnsZeroValue(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}
	if want := `{"isPreconfer":false,"isSubmitter":false,"queuedBatches":0,"watchdogFailureStreak":0}`; rec.Body.String() != want+"\n" {
		t.Fatalf("GET /status body = %q, want %q", rec.Body.String(), want)
	}
}

func TestStatus_ReportsProviderValues(t *testing.T) {
	s := New(fakeStatus{preconfer: true, submitter: false, queued: 3, failures: 7})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	want := `{"isPreconfer":true,"isSubmitter":false,"queuedBatches":3,"watchdogFailureStreak":7}` + "\n"
	if rec.Body.String() != want {
		t.Fatalf("GET /status body = %q, want %q", rec.Body.String(), want)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
}
