package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue returns the value of the counter whose label values match
// labels in order.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			pairs := m.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, lp := range pairs {
				if lp.GetValue() != labels[i] {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration(OutcomeSuccess)
	c.RecordRegistration(OutcomeSuccess)
	c.RecordRegistration(OutcomeConflict)
	c.RecordLogin(OutcomeInvalid)
	c.RecordVerification("email", OutcomeSuccess)
	c.RecordNotification("sms", false, 20*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, reg, "accounts_registrations_total", OutcomeSuccess))
	assert.Equal(t, 1.0, counterValue(t, reg, "accounts_registrations_total", OutcomeConflict))
	assert.Equal(t, 1.0, counterValue(t, reg, "accounts_logins_total", OutcomeInvalid))
	assert.Equal(t, 1.0, counterValue(t, reg, "accounts_code_verifications_total", "email", OutcomeSuccess))
	assert.Equal(t, 1.0, counterValue(t, reg, "accounts_notifications_total", "sms", "failed"))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPRequest(http.MethodPost, "/api/auth/login", http.StatusOK, 5*time.Millisecond)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Result().Body)
	assert.Contains(t, string(body), `accounts_http_requests_total{method="POST",route="/api/auth/login",status_code="200"} 1`)
	assert.Contains(t, string(body), "accounts_http_request_duration_seconds")
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordLogin(OutcomeSuccess)
	r.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
}
