package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/projects", "/projects"},
		{"/projects/12", "/projects/{id}"},
		{"/projects/12/clients/a@b.c", "/projects/{id}/clients/a@b.c"},
		{"/audit/dispute/7", "/audit/dispute/{id}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

func TestMetricsMiddlewareUsesPattern(t *testing.T) {
	m := NewMetrics("test", nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.MetricsMiddleware(mux)

	for _, id := range []string{"1", "2", "3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/projects/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/projects/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}

func TestBusinessCounters(t *testing.T) {
	m := NewMetrics("test", nil)

	m.IDAllocated("projects")
	m.IDAllocated("projects")
	m.Transition("associate", "pending", "accepted")
	m.MailSent("invitation", nil)
	m.MailSent("invitation", errors.New("smtp down"))
	m.PaymentCharge("declined")
	m.SubscriptionsExpired(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IDsAllocatedTotal.WithLabelValues("projects")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LifecycleTransitionsTotal.WithLabelValues("associate", "pending", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailSendTotal.WithLabelValues("invitation", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentChargesTotal.WithLabelValues("declined")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubscriptionsExpiredTotal))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_ids_allocated_total")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IDAllocated("projects")
	m.Transition("dispute", "Open", "Closed")
	m.MailSent("verification", nil)
	m.PaymentCharge("succeeded")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.MetricsMiddleware(next))
}
