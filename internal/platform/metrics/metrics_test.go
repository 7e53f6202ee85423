package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape: expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMetrics_refresh_and_upstream_counters(t *testing.T) {
	m := New()
	m.ObserveRefresh("rooms", "ok")
	m.ObserveRefresh("rooms", "ok")
	m.IncUpstreamError("timeout")

	body := scrape(t, m, nil)
	if !strings.Contains(body, `recdash_refresh_total{result="ok",store="rooms"} 2`) {
		t.Errorf("missing refresh counter:\n%s", body)
	}
	if !strings.Contains(body, `recdash_upstream_errors_total{kind="timeout"} 1`) {
		t.Errorf("missing upstream error counter:\n%s", body)
	}
}

func TestMetrics_Handler_updates_gauges_before_scrape(t *testing.T) {
	m := New()
	body := scrape(t, m, func() {
		m.SetRoomCounts(3, 2, 1)
		m.SetServers(4)
	})
	for _, want := range []string{
		`recdash_rooms{state="total"} 3`,
		`recdash_rooms{state="streaming"} 2`,
		`recdash_rooms{state="recording"} 1`,
		`recdash_servers 4`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/rooms/{roomId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms/abc", nil))

	body := scrape(t, m, nil)
	if !strings.Contains(body, "recdash_requests_total 2") {
		t.Errorf("expected 2 requests:\n%s", body)
	}
	if !strings.Contains(body, "recdash_errors_total 1") {
		t.Errorf("expected 1 error:\n%s", body)
	}
	if !strings.Contains(body, `recdash_request_duration_seconds_count{route="/rooms/{roomId}"} 1`) {
		t.Errorf("expected duration by route pattern:\n%s", body)
	}
}
