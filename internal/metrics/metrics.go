package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "port16",
	Name:      "sessions_active",
	Help:      "Number of registered charge point sessions",
})

var heartbeatCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "port16",
	Name:      "heartbeats_total",
	Help:      "Total number of heartbeat requests sent.",
}, []string{"charge_point_id"})

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "port16",
	Name:      "commands_total",
	Help:      "Total number of executed commands by action.",
}, []string{"charge_point_id", "action"})

var transportFailureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "port16",
	Name:      "transport_failures_total",
	Help:      "Total number of failed protocol sends.",
}, []string{"charge_point_id"})

func ObserveSessions(count int) {
	sessionsGauge.Set(float64(count))
}

func CountHeartbeat(chargePointID string) {
	if len(chargePointID) == 0 {
		return
	}
	heartbeatCounter.With(prometheus.Labels{"charge_point_id": chargePointID}).Inc()
}

func CountCommand(chargePointID, action string) {
	if len(chargePointID) == 0 || len(action) == 0 {
		return
	}
	commandCounter.With(prometheus.Labels{"charge_point_id": chargePointID, "action": action}).Inc()
}

func CountTransportFailure(chargePointID string) {
	if len(chargePointID) == 0 {
		return
	}
	transportFailureCounter.With(prometheus.Labels{"charge_point_id": chargePointID}).Inc()
}
