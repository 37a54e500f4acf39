package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"solation/native/rfq"
)

// RFQMetrics implements rfq.Metrics on top of the default Prometheus registry.
type RFQMetrics struct {
	operations  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	intents     *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	settlements *prometheus.CounterVec
	payouts     *prometheus.CounterVec
}

var (
	rfqOnce     sync.Once
	rfqRegistry *RFQMetrics
)

// RFQ returns the process-wide settlement metrics.
func RFQ() *RFQMetrics {
	rfqOnce.Do(func() {
		rfqRegistry = newRFQMetrics()
		prometheus.MustRegister(rfqRegistry.collectors()...)
	})
	return rfqRegistry
}

func newRFQMetrics() *RFQMetrics {
	return &RFQMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solation",
			Subsystem: "rfq",
			Name:      "operations_total",
			Help:      "Engine operations by name and outcome.",
		}, []string{"op", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solation",
			Subsystem: "rfq",
			Name:      "rejections_total",
			Help:      "Rejected engine operations by error kind and code.",
		}, []string{"op", "kind", "code"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solation",
			Subsystem: "rfq",
			Name:      "intent_transitions_total",
			Help:      "Intent status transitions by target status.",
		}, []string{"status"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solation",
			Subsystem: "rfq",
			Name:      "resolutions_total",
			Help:      "Owner overrides by resolution type.",
		}, []string{"resolution"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solation",
			Subsystem: "rfq",
			Name:      "settlements_total",
			Help:      "Settled positions by outcome.",
		}, []string{"status"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solation",
			Subsystem: "rfq",
			Name:      "settlement_payout_units_total",
			Help:      "Collateral units paid out at settlement by recipient.",
		}, []string{"recipient"}),
	}
}

func (m *RFQMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operations,
		m.rejections,
		m.intents,
		m.resolutions,
		m.settlements,
		m.payouts,
	}
}

func (m *RFQMetrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.operations.WithLabelValues(op, "success").Inc()
		return
	}
	m.operations.WithLabelValues(op, "error").Inc()
	kind, ok := rfq.KindOf(err)
	if !ok {
		m.rejections.WithLabelValues(op, "internal", "").Inc()
		return
	}
	m.rejections.WithLabelValues(op, kind.String(), rfq.CodeOf(err)).Inc()
}

func (m *RFQMetrics) RecordIntentStatus(status string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(status).Inc()
}

func (m *RFQMetrics) RecordResolution(resolution string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(resolution).Inc()
}

func (m *RFQMetrics) RecordSettlement(status string, userAmount, mmAmount uint64) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(status).Inc()
	m.payouts.WithLabelValues("user").Add(float64(userAmount))
	m.payouts.WithLabelValues("mm").Add(float64(mmAmount))
}
