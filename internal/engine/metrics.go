package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

type Metrics struct {
	// Latency: сколько времени занял вызов инструмента
	ToolDuration *prometheus.HistogramVec

	// Traffic: вызовы инструментов по результату (success, error, missing_identity)
	ToolCalls *prometheus.CounterVec

	// Traffic: чтения ресурсов
	ResourceReads *prometheus.CounterVec

	// Errors: отказы в доступе
	PermissionDenials *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker хранилища (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	reg prometheus.Registerer
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ToolDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_gateway_tool_duration_seconds",
			Help:    "Histogram of tool call latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"domain", "tool"}),

		ToolCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "crm_gateway_tool_calls_total",
			Help: "Total number of dispatched tool calls.",
		}, []string{"domain", "tool", "result"}),

		ResourceReads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "crm_gateway_resource_reads_total",
			Help: "Total number of resource reads.",
		}, []string{"domain", "view", "result"}),

		PermissionDenials: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "crm_gateway_permission_denials_total",
			Help: "Total number of denied tool calls.",
		}, []string{"module", "action"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "crm_gateway_circuit_breaker_state",
			Help: "Current state of the data store circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),

		reg: reg,
	}
}

// AuditStats: то, что журнал отдает в метрики.
type AuditStats interface {
	Len() int
	Cap() int
	Dropped() int64
	Failed() int64
}

// RegisterAudit публикует заполненность буфера журнала (backpressure) и потери.
func (m *Metrics) RegisterAudit(a AuditStats) {
	f := promauto.With(m.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "crm_gateway_audit_buffer_utilization",
		Help: "Current number of entries in the audit buffer.",
	}, func() float64 { return float64(a.Len()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "crm_gateway_audit_buffer_capacity",
		Help: "Capacity of the audit buffer.",
	}, func() float64 { return float64(a.Cap()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "crm_gateway_audit_dropped_total",
		Help: "Audit entries dropped because the buffer was full or closed.",
	}, func() float64 { return float64(a.Dropped()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "crm_gateway_audit_failed_total",
		Help: "Audit entries the sink failed to persist.",
	}, func() float64 { return float64(a.Failed()) })
}

// OnBreakerStateChange подходит для store.ReliabilityConfig.OnStateChange.
func (m *Metrics) OnBreakerStateChange(name string, _, to gobreaker.State) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
}
