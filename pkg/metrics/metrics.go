package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 通知创建计数
	NotificationCreatedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_created_count",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"}, // type: trade, portfolio, system, market
	)

	// push 投递计数
	PushDeliveredCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_delivered_count",
			Help: "Total number of records delivered over the push channel",
		},
		[]string{"status"}, // status: sent, dropped
	)

	// 当前在线的 push 会话数
	PushSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_sessions",
			Help: "Number of currently registered push channel sessions",
		},
	)

	// toast 结束原因计数
	ToastCompletedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_completed_count",
			Help: "Total number of completed toast presentations",
		},
		[]string{"reason"}, // reason: timeout, dismissed, acted
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementNotificationCreated 增加通知创建计数
func IncrementNotificationCreated(notificationType string) {
	NotificationCreatedCount.WithLabelValues(notificationType).Inc()
}

// IncrementPushDelivered 增加 push 投递计数
func IncrementPushDelivered(status string) {
	PushDeliveredCount.WithLabelValues(status).Inc()
}

// IncrementToastCompleted 增加 toast 完成计数
func IncrementToastCompleted(reason string) {
	ToastCompletedCount.WithLabelValues(reason).Inc()
}
