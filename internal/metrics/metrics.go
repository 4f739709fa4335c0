package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StationsRunning tracks the number of simulated stations currently started.
	StationsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simulator_stations_running",
		Help: "The number of simulated charging stations currently running.",
	})

	// StationsRegistered tracks stations by registration status (accepted, pending, rejected).
	StationsRegistered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulator_stations_registered",
		Help: "The number of stations per CSMS registration status.",
	}, []string{"status"})

	// MessagesTotal counts OCPP messages, labeled by direction, action and protocol version.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_messages_total",
		Help: "Total number of OCPP messages exchanged with the CSMS.",
	}, []string{"direction", "action", "ocpp_version"})

	// RequestDuration observes the round-trip time of station-originated calls.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simulator_request_duration_seconds",
		Help:    "Histogram of call round-trip times, from send to matching result.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~20s
	}, []string{"action"})

	// CallTimeouts counts station-originated calls that never got a response.
	CallTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_call_timeouts_total",
		Help: "Total number of calls that timed out waiting for a CSMS response.",
	})

	// TransactionsTotal counts simulated transactions by terminal result.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_transactions_total",
		Help: "Total number of simulated transactions, labeled by result.",
	}, []string{"result"})

	// Reconnects counts WebSocket reconnection attempts across the fleet.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simulator_reconnects_total",
		Help: "Total number of WebSocket reconnection attempts.",
	})

	// EventsPublished counts fleet events exported to the message broker.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_events_published_total",
		Help: "Total number of fleet events published to the message broker.",
	}, []string{"event_type"})

	// WorkerElements tracks elements managed by the worker host, labeled by state.
	WorkerElements = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulator_worker_elements",
		Help: "Worker host elements, labeled by state (added, running, failed).",
	}, []string{"state"})
)
