package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records engine operation outcomes and RPC latency.
type SettlementMetrics struct {
	operations *prometheus.CounterVec
	rpcLatency *prometheus.HistogramVec
	auditSize  prometheus.Counter
}

var (
	settlementOnce sync.Once
	settlementReg  *SettlementMetrics
)

// Settlement returns the lazily-initialised settlement metrics registry.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementReg = &SettlementMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "settlr",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total settlement engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "settlr",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			auditSize: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "settlr",
				Subsystem: "audit",
				Name:      "entries_total",
				Help:      "Total audit log entries appended.",
			}),
		}
		prometheus.MustRegister(settlementReg.operations, settlementReg.rpcLatency, settlementReg.auditSize)
	})
	return settlementReg
}

// ObserveOperation records the outcome of a settlement engine operation.
func (m *SettlementMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRPCDuration records the latency of a JSON-RPC handler invocation.
func (m *SettlementMetrics) ObserveRPCDuration(method string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcLatency.WithLabelValues(method).Observe(seconds)
}

// AuditEntryAppended increments the audit entry counter.
func (m *SettlementMetrics) AuditEntryAppended() {
	if m == nil {
		return
	}
	m.auditSize.Inc()
}
