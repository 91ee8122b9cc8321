// Package metrics 注册服务的 Prometheus 指标。指标在包初始化时注册到默认
// registry，由 /metrics 暴露。
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tempshare"

// HTTP 指标
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时（秒）",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// 业务指标
var (
	// UploadsTotal 上传结果计数，result = ok | invalid | capacity | storage_error | index_error
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "上传操作次数",
		},
		[]string{"result"},
	)

	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "成功上传的字节数",
	})

	// DownloadsTotal result = ok | not_found | expired | orphan
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "下载请求次数",
		},
		[]string{"result"},
	)

	// AdminActionsTotal action = delete | make_permanent, result = ok | noop | error
	AdminActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_actions_total",
			Help:      "管理操作次数",
		},
		[]string{"action", "result"},
	)

	SweeperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_runs_total",
		Help:      "过期清理执行次数",
	})

	SweeperSkippedRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_skipped_runs_total",
		Help:      "因其他实例持有锁而跳过的清理次数",
	})

	SweeperFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_files_deleted_total",
		Help:      "过期清理删除的文件数",
	})

	SweeperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_errors_total",
		Help:      "过期清理中单条记录失败的次数",
	})

	SweeperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweeper_duration_seconds",
		Help:      "单次过期清理耗时（秒）",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "发布的实时通知数",
		},
		[]string{"type"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "被限流拒绝的请求数",
		},
		[]string{"route"},
	)
)

// GinMiddleware 记录请求数和耗时。route 使用 gin 的路由模板，避免 id 造成高基数。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
