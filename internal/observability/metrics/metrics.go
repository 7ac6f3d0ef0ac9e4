package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlatformMetrics exposes counters/histograms for the conversation platform.
type PlatformMetrics struct {
	inboundTotal     *prometheus.CounterVec
	inboundLatency   *prometheus.HistogramVec
	llmCalls         *prometheus.CounterVec
	actionsTotal     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	outboundTotal    *prometheus.CounterVec
	escalationsTotal prometheus.Counter
}

func NewPlatformMetrics(reg prometheus.Registerer) *PlatformMetrics {
	m := &PlatformMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardlink",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound gateway webhooks",
		}, []string{"status"}),
		inboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wardlink",
			Subsystem: "conversation",
			Name:      "inbound_latency_seconds",
			Help:      "Latency of inbound message handling end to end",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardlink",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total LLM calls",
		}, []string{"provider", "outcome"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardlink",
			Subsystem: "decision",
			Name:      "actions_total",
			Help:      "Total decision actions dispatched",
		}, []string{"action"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardlink",
			Subsystem: "approval",
			Name:      "transitions_total",
			Help:      "Total meeting request state transitions",
		}, []string{"to"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardlink",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound gateway sends",
		}, []string{"status"}),
		escalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wardlink",
			Subsystem: "escalation",
			Name:      "created_total",
			Help:      "Total escalations created",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.inboundLatency, m.llmCalls, m.actionsTotal, m.transitionsTotal, m.outboundTotal, m.escalationsTotal)
	return m
}

func (m *PlatformMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *PlatformMetrics) ObserveInboundLatency(scope string, seconds float64) {
	if m == nil {
		return
	}
	m.inboundLatency.WithLabelValues(scope).Observe(seconds)
}

func (m *PlatformMetrics) ObserveLLMCall(provider, outcome string) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, outcome).Inc()
}

func (m *PlatformMetrics) ObserveAction(action string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
}

func (m *PlatformMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *PlatformMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *PlatformMetrics) ObserveEscalation() {
	if m == nil {
		return
	}
	m.escalationsTotal.Inc()
}
