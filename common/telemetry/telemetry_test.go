package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowr/common/logger"
)

func TestMetricsHandlerExposesSchedulerGauges(t *testing.T) {
	tel := New(0, 0, logger.New("error", "text"))
	tel.JobsReady.Set(3)
	tel.JobsRunning.Set(1)
	tel.JobsDone.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	tel.MetricsHandler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "flowr_jobs_ready 3"))
	require.True(t, strings.Contains(body, "flowr_jobs_running 1"))
	require.True(t, strings.Contains(body, "flowr_jobs_done_total 1"))
}

func TestNewUsesAPrivateRegistryPerInstance(t *testing.T) {
	// Two Telemetry instances registering the same metric names against
	// the global default registry would panic on the second New() call;
	// a private registry per instance is what makes that safe.
	require.NotPanics(t, func() {
		New(0, 0, logger.New("error", "text"))
		New(0, 0, logger.New("error", "text"))
	})
}
