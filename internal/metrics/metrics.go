// Package metrics 集中注册 Prometheus 指标
// 标签只使用有限取值（结果、方法、路由模板、状态码），避免基数膨胀
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 转发结果标签
const (
	ForwardResultSuccess = "success"
	ForwardResultFailed  = "failed"
	ForwardResultSkipped = "skipped"
)

var (
	forwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_forwards_total",
			Help: "Inbound events handled by the relay, by result.",
		},
		[]string{"result"},
	)

	forwardAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_forward_attempts_total",
			Help: "Forward calls issued to the platform, including retries.",
		},
	)

	messagesReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forwarder_query_messages_returned",
			Help:    "Messages returned per history query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 150, 200},
		},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(forwards, forwardAttempts, messagesReturned, httpReqs, httpLat)
}

// RecordForward 记录一次事件处理结果
func RecordForward(result string) {
	forwards.WithLabelValues(result).Inc()
}

// RecordForwardAttempt 记录一次转发调用
func RecordForwardAttempt() {
	forwardAttempts.Inc()
}

// ObserveMessagesReturned 记录查询返回条数
func ObserveMessagesReturned(n int) {
	messagesReturned.Observe(float64(n))
}

// ObserveHTTP 记录 HTTP 请求
func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	httpReqs.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpLat.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
