package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fittrack"

// 结果标签
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"

	AuditConsistent = "consistent"
	AuditDrift      = "drift"
)

// Metrics 每个实例持有独立的 Registry，nil 接收者上的方法为空操作
type Metrics struct {
	registry           *prometheus.Registry
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	ledgerAdjustments  *prometheus.CounterVec
	orderingOperations *prometheus.CounterVec
	ledgerAudits       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "path"},
		),
		ledgerAdjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "adjustments_total",
				Help:      "Credit adjustments by outcome.",
			},
			[]string{"result"},
		),
		orderingOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ordering",
				Name:      "operations_total",
				Help:      "Session exercise ordering mutations by operation and outcome.",
			},
			[]string{"op", "result"},
		),
		ledgerAudits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "audits_total",
				Help:      "Balance audits comparing cached balance with the ledger sum.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.ledgerAdjustments,
		m.orderingOperations,
		m.ledgerAudits,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP path 应为路由模板而不是原始路径，避免标签基数膨胀
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) LedgerAdjustment(result string) {
	if m == nil {
		return
	}
	m.ledgerAdjustments.WithLabelValues(result).Inc()
}

func (m *Metrics) OrderingOperation(op, result string) {
	if m == nil {
		return
	}
	m.orderingOperations.WithLabelValues(op, result).Inc()
}

// LedgerAudit result 取 AuditConsistent、AuditDrift 或 ResultError
func (m *Metrics) LedgerAudit(result string) {
	if m == nil {
		return
	}
	m.ledgerAudits.WithLabelValues(result).Inc()
}
