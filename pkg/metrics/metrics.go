package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InviteTransitions counts invite state changes by target status.
	InviteTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_invite_transitions_total",
			Help: "Total number of invite status transitions",
		},
		[]string{"to"},
	)

	// Confirmations counts confirmation attempts by result (confirmed|conflict|error).
	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_confirmations_total",
			Help: "Total number of confirmation attempts",
		},
		[]string{"result"},
	)

	// Cancellations counts cancelled confirmations by initiator and whether they were late.
	Cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_confirmation_cancellations_total",
			Help: "Total number of cancelled confirmations",
		},
		[]string{"initiator", "late"},
	)

	// Suspensions counts suspensions issued by reason.
	Suspensions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_suspensions_total",
			Help: "Total number of booking suspensions issued",
		},
		[]string{"reason"},
	)

	// Ratings counts submitted ratings by rater role.
	Ratings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_ratings_total",
			Help: "Total number of ratings submitted",
		},
		[]string{"rater_role"},
	)

	// CandidateListSize observes how many musicians a candidate query returns.
	CandidateListSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gigbook_candidate_list_size",
			Help:    "Number of candidates returned per role query",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// EventDeliveries counts outbox deliveries by event type and result (delivered|failed|dead).
	EventDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_event_deliveries_total",
			Help: "Total number of domain event delivery attempts",
		},
		[]string{"type", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gigbook_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

var (
	// MaintenanceRuns counts background job runs by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gigbook_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// MaintenanceDuration observes maintenance job run times.
	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gigbook_maintenance_duration_seconds",
			Help:    "Maintenance job run duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
