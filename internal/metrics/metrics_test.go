package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.ReportsDispatched.WithLabelValues("success").Inc()
	c.RecordsLoaded.Set(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReportsDispatched.WithLabelValues("success")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `harrier_reports_dispatched_total{outcome="success"} 1`))
	assert.True(t, strings.Contains(body, "harrier_records_loaded 42"))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.PipelineRuns.WithLabelValues("ok").Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.PipelineRuns.WithLabelValues("ok")))
}
