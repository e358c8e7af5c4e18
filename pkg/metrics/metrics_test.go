package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRemoteCall(t *testing.T) {
	m := NewMetricsCollector(prometheus.NewRegistry())

	m.RecordRemoteCall("POST", "/auth/login", 200, 10*time.Millisecond)
	m.RecordRemoteCall("POST", "/auth/login", 401, 10*time.Millisecond)
	m.RecordRemoteCall("POST", "/auth/login", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequestsTotal.WithLabelValues("POST", "/auth/login", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequestsTotal.WithLabelValues("POST", "/auth/login", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequestsTotal.WithLabelValues("POST", "/auth/login", "error")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var m *MetricsCollector
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/posts/feed", 200, time.Millisecond)
		m.RecordRemoteCall("GET", "/post", 500, time.Millisecond)
		m.RecordStoreError("toggle_like")
		m.RecordSyncTask("pushed")
	})
}

func TestGetStatusCategory(t *testing.T) {
	assert.Equal(t, "3xx", getStatusCategory(304))
	assert.Equal(t, "5xx", getStatusCategory(503))
}
