package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInstrumentCountsRequests(t *testing.T) {
	m := New("careerdev_test")
	h := m.Instrument("resumes_list", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/resumes/x", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `careerdev_test_requests_total{endpoint="resumes_list",status="404"} 1`) {
		t.Fatalf("requests_total not exported:\n%s", body)
	}
}

func TestStreamAndUploadMetricsExported(t *testing.T) {
	m := New("")
	m.StreamsActive.Inc()
	m.StreamsTotal.WithLabelValues("chat", "ok").Inc()
	m.UploadsTotal.Inc()
	m.UploadBytesTotal.Add(2048)
	m.RateLimitHitsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"careerdev_streams_active 1",
		`careerdev_streams_total{outcome="ok",service="chat"} 1`,
		"careerdev_uploads_total 1",
		"careerdev_upload_bytes_total 2048",
		"careerdev_rate_limit_hits_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestPrivateRegistryHasNoGoCollector(t *testing.T) {
	m := New("careerdev")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("default runtime collectors leaked into private registry")
	}
}
