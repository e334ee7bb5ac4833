package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quickfs",
		Subsystem: "relay",
		Name:      "sessions_live",
		Help:      "Number of currently open upload sessions.",
	})
	receiversLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quickfs",
		Subsystem: "relay",
		Name:      "receivers_live",
		Help:      "Number of currently joined receivers across all sessions.",
	})
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quickfs",
		Subsystem: "relay",
		Name:      "messages_sent_total",
		Help:      "Messages delivered to hosts and receivers, by type.",
	}, []string{"type"})
	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickfs",
		Subsystem: "relay",
		Name:      "messages_dropped_total",
		Help:      "Forwards dropped because the target receiver was gone.",
	})
)
