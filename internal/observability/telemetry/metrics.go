package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de negócio
	SlotClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkflow_slot_claims_total",
		Help: "Slot claim attempts by outcome",
	}, []string{"outcome"}) // claimed, unavailable, forced, error

	SlotReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkflow_slot_releases_total",
		Help: "Slot release attempts by outcome",
	}, []string{"outcome"}) // released, stale, error

	SlotDisplacementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkflow_slot_displacements_total",
		Help: "Dedicated subscriber slots force-claimed away from another booking",
	})

	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkflow_booking_transitions_total",
		Help: "Booking state transitions by target state",
	}, []string{"status"})

	WaivedChargesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parkflow_waived_charges_total",
		Help: "Checkout extras below the payable minimum that were waived",
	})

	PaymentCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkflow_payment_calls_total",
		Help: "Payment provider calls by operation and outcome",
	}, []string{"operation", "outcome"})

	// Métricas de infraestrutura
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "parkflow_sweep_duration_seconds",
		Help:    "Duration of one expiry sweep cycle",
		Buckets: prometheus.DefBuckets,
	})

	SweepProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkflow_sweep_processed_total",
		Help: "Records handled by the expiry sweeper",
	}, []string{"sweep", "outcome"})

	OutboundTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parkflow_outbound_tasks_total",
		Help: "Best-effort outbound tasks by kind and outcome",
	}, []string{"kind", "outcome"})

	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parkflow_realtime_clients",
		Help: "Connected websocket clients",
	})
)
