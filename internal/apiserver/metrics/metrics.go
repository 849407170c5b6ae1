// Package metrics Prometheus 指标导出
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
//
// 方法对 nil 接收者安全，测试中可以不创建指标。
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 业务指标
	IDsAllocatedTotal         *prometheus.CounterVec
	LifecycleTransitionsTotal *prometheus.CounterVec
	MailSendTotal             *prometheus.CounterVec
	PaymentChargesTotal       *prometheus.CounterVec
	SubscriptionsExpiredTotal prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics 创建指标实例并注册到 reg
//
// reg 为 nil 时使用独立的 Registry，便于测试中重复创建。
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		IDsAllocatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ids_allocated_total",
				Help:      "Sequential ids allocated per collection",
			},
			[]string{"collection"},
		),
		LifecycleTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_transitions_total",
				Help:      "Entity status transitions",
			},
			[]string{"entity", "from", "to"},
		),
		MailSendTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_send_total",
				Help:      "Outgoing mail by result",
			},
			[]string{"kind", "result"},
		),
		PaymentChargesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_charges_total",
				Help:      "Payment gateway charges by status",
			},
			[]string{"status"},
		),
		SubscriptionsExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriptions_expired_total",
				Help:      "Subscriptions moved to Expired by the background expirer",
			},
		),
		gatherer: reg,
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
//
// 需放在 ServeMux 外的最内层，ServeMux 匹配后会在同一个 Request 上写入 Pattern。
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routeLabel(r)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// StatusCode 返回已写入的状态码
func (rw *responseWriter) StatusCode() int {
	return rw.statusCode
}

// routeLabel 优先使用路由模式，避免 ID 造成高基数
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return normalizePath(r.URL.Path)
}

// normalizePath 未匹配路由时将数字段替换为占位符
// 例如 /projects/12/clients -> /projects/{id}/clients
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Handler 返回 Prometheus HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// IDAllocated 记录一次序列号分配
func (m *Metrics) IDAllocated(collection string) {
	if m == nil {
		return
	}
	m.IDsAllocatedTotal.WithLabelValues(collection).Inc()
}

// Transition 记录一次状态迁移
func (m *Metrics) Transition(entity, from, to string) {
	if m == nil {
		return
	}
	m.LifecycleTransitionsTotal.WithLabelValues(entity, from, to).Inc()
}

// MailSent 记录邮件发送结果
func (m *Metrics) MailSent(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.MailSendTotal.WithLabelValues(kind, result).Inc()
}

// PaymentCharge 记录扣款结果：succeeded / declined / error
func (m *Metrics) PaymentCharge(status string) {
	if m == nil {
		return
	}
	m.PaymentChargesTotal.WithLabelValues(status).Inc()
}

// SubscriptionsExpired 记录过期扫描处理的订阅数
func (m *Metrics) SubscriptionsExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SubscriptionsExpiredTotal.Add(float64(n))
}
