package endpoints

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestStatus(t *testing.T) {
	t.Run("returns ok when storage is reachable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.health.On("CheckConnectivity", mock.Anything).Return(nil)

		rec := ts.do(t, "GET", "/status", nil, false)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("returns 503 when storage is down", func(t *testing.T) {
		ts := newTestServer(t)
		ts.health.On("CheckConnectivity", mock.Anything).Return(assert.AnError)

		rec := ts.do(t, "GET", "/status", nil, false)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	})
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.Metrics.LicenseIssued("Demo")

	rec := ts.do(t, "GET", "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `licensing_licenses_issued_total{license_type="Demo"} 1`)
}
