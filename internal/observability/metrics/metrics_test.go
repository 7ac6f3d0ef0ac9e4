package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPlatformMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPlatformMetrics(reg)
	m.ObserveInbound("queued")
	m.ObserveInboundLatency("patient", 0.5)
	m.ObserveLLMCall("bedrock", "ok")
	m.ObserveAction("answer")
	m.ObserveTransition("confirmed")
	m.ObserveOutbound("sent")
	m.ObserveEscalation()
}

func TestPlatformMetricsNilSafe(t *testing.T) {
	var m *PlatformMetrics
	m.ObserveInbound("queued")
	m.ObserveInboundLatency("patient", 0.1)
	m.ObserveLLMCall("gemini", "error")
	m.ObserveAction("escalate")
	m.ObserveTransition("declined")
	m.ObserveOutbound("failed")
	m.ObserveEscalation()
}
