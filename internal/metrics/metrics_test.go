package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	handler := Middleware("pong-test", func(*http.Request) string { return "/rooms/{roomName}" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rooms/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t)
	assert.Contains(t, body, `pong_http_requests_total{method="GET",path="/rooms/{roomName}",service="pong-test",status="418"} 1`)
	assert.NotContains(t, body, `path="/rooms/abc"`)
}

func TestRecorderHijackUnsupported(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rec.Hijack()
	assert.Error(t, err)
}

func TestHandlerExposesGameMetrics(t *testing.T) {
	MatchesTotal.WithLabelValues(OutcomeFinished).Inc()
	assert.Contains(t, scrape(t), "pong_matches_total")
}
