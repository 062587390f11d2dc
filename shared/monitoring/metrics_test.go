package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initForTest(t *testing.T) {
	t.Helper()
	cfg := DefaultConfig("portal-backend-test")
	cfg.ExporterType = "prometheus"
	require.NoError(t, Initialize(cfg))
}

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	initForTest(t)

	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)
	r.Get("/api/v1/transactions/{transactionId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transactions/txn_123", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := scrape(t)
	assert.Contains(t, body, "http_requests")
	assert.Contains(t, body, "/api/v1/transactions/{transactionId}")
	assert.NotContains(t, body, "txn_123")
}

func TestHTTPMetricsMiddleware_NotFoundIsUnknown(t *testing.T) {
	initForTest(t)

	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/path/abc-1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, scrape(t), "abc-1")
}

func TestRecordBusinessAndExternal(t *testing.T) {
	initForTest(t)

	RecordBusinessEvent("transaction_created", "success")
	RecordExternalCall("functions", "generate-setup-link", 20*time.Millisecond, assert.AnError)

	body := scrape(t)
	assert.Contains(t, body, "business_events")
	assert.Contains(t, body, "external_call_errors")
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("api-key=abc, x-team = portal ,bad")
	assert.Equal(t, map[string]string{"api-key": "abc", "x-team": "portal"}, got)
	assert.Empty(t, parseHeaders(""))
}

func TestOTLPOptions_RequiresHTTPS(t *testing.T) {
	_, err := otlpOptions(Config{OTLPEndpoint: "http://collector:4318"})
	assert.Error(t, err)

	opts, err := otlpOptions(Config{OTLPEndpoint: "http://collector:4318", OTLPTLSInsecure: true})
	assert.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = otlpOptions(Config{})
	assert.Error(t, err)
}
