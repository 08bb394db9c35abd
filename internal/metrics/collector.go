// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 调度指标
	assignmentsTotal  *prometheus.CounterVec
	nothingAvailable  prometheus.Counter
	tasksReclaimed    prometheus.Counter
	findingsSubmitted *prometheus.CounterVec
	reviewsRecorded   prometheus.Counter
	findingsResolved  *prometheus.CounterVec
	tasksGenerated    *prometheus.CounterVec

	// 引用核验指标
	doiVerifications *prometheus.CounterVec
	doiVerifyLatency prometheus.Histogram

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 调度指标
	c.assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Total number of work items handed to agents",
		},
		[]string{"kind"},
	)

	c.nothingAvailable = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_empty_total",
			Help:      "Total number of next-task requests with nothing available",
		},
	)

	c.tasksReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_reclaimed_total",
			Help:      "Total number of stale task assignments returned to the pool",
		},
	)

	c.findingsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_submitted_total",
			Help:      "Total number of findings submitted",
		},
		[]string{"confidence"},
	)

	c.reviewsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qc_reviews_total",
			Help:      "Total number of quality reviews recorded",
		},
	)

	c.findingsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_resolved_total",
			Help:      "Total number of findings resolved by consensus",
		},
		[]string{"status"},
	)

	c.tasksGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_generated_total",
			Help:      "Total number of derived tasks generated",
		},
		[]string{"kind"},
	)

	// 引用核验指标
	c.doiVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doi_verifications_total",
			Help:      "Total number of DOI verification attempts",
		},
		[]string{"result"},
	)

	c.doiVerifyLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "doi_verify_duration_seconds",
			Help:      "DOI verification request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧭 调度指标记录
// =============================================================================

// RecordAssignment 记录一次任务分配
func (c *Collector) RecordAssignment(kind string) {
	c.assignmentsTotal.WithLabelValues(kind).Inc()
}

// RecordNothingAvailable 记录一次空分配
func (c *Collector) RecordNothingAvailable() {
	c.nothingAvailable.Inc()
}

// RecordTasksReclaimed 记录回收的过期任务数
func (c *Collector) RecordTasksReclaimed(count int64) {
	c.tasksReclaimed.Add(float64(count))
}

// RecordFindingSubmitted 记录一次发现提交
func (c *Collector) RecordFindingSubmitted(confidence string) {
	c.findingsSubmitted.WithLabelValues(confidence).Inc()
}

// RecordReview 记录一次质检评审
func (c *Collector) RecordReview() {
	c.reviewsRecorded.Inc()
}

// RecordFindingResolved 记录一次共识裁决
func (c *Collector) RecordFindingResolved(status string) {
	c.findingsResolved.WithLabelValues(status).Inc()
}

// RecordTaskGenerated 记录一次派生任务生成
func (c *Collector) RecordTaskGenerated(kind string) {
	c.tasksGenerated.WithLabelValues(kind).Inc()
}

// =============================================================================
// 📚 引用核验指标记录
// =============================================================================

// RecordDOIVerification 记录一次 DOI 核验
func (c *Collector) RecordDOIVerification(result string, duration time.Duration) {
	c.doiVerifications.WithLabelValues(result).Inc()
	c.doiVerifyLatency.Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
