package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
// 所有记录方法对 nil 接收者安全，未启用指标的组件可直接传 nil
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 远端调用指标
	remoteRequestsTotal   *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec

	// 存储指标
	storeErrorsTotal *prometheus.CounterVec

	// 后台同步
	syncTasksTotal *prometheus.CounterVec
}

// NewMetricsCollector 在指定注册表上创建指标
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankkings_http_requests_total",
				Help: "Total number of local API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankkings_http_request_duration_seconds",
				Help:    "Local API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		remoteRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankkings_remote_requests_total",
				Help: "Total number of calls to the remote backend",
			},
			[]string{"method", "endpoint", "status"},
		),
		remoteRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rankkings_remote_request_duration_seconds",
				Help:    "Remote backend call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint"},
		),
		storeErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankkings_store_errors_total",
				Help: "Local store operation errors",
			},
			[]string{"operation"},
		),
		syncTasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankkings_sync_tasks_total",
				Help: "Background push tasks by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordHTTPRequest 记录本地 API 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRemoteCall 记录远端调用，status 为 0 表示传输失败
func (m *MetricsCollector) RecordRemoteCall(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := getStatusCategory(status)
	m.remoteRequestsTotal.WithLabelValues(method, endpoint, label).Inc()
	m.remoteRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStoreError 记录存储错误
func (m *MetricsCollector) RecordStoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordSyncTask outcome: pushed | retried | dropped
func (m *MetricsCollector) RecordSyncTask(outcome string) {
	if m == nil {
		return
	}
	m.syncTasksTotal.WithLabelValues(outcome).Inc()
}

func getStatusCategory(status int) string {
	switch {
	case status == 0:
		return "error"
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

var (
	globalCollector *MetricsCollector
	once            sync.Once
)

// InitMetrics 在默认注册表上初始化全局收集器
func InitMetrics() {
	once.Do(func() {
		globalCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
}

// GetGlobalCollector 获取全局收集器
func GetGlobalCollector() *MetricsCollector {
	InitMetrics()
	return globalCollector
}
