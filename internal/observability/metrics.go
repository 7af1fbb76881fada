package observability

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters surfacing the known non-transactional gaps: partial create-form
// failures, group/form desyncs repaired by the reconciler, and companion
// collections left behind by deleted forms.
var (
	CreateFormPartialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formgen_create_form_partial_failures_total",
		Help: "Create-form sequences that failed after the companion collection was created.",
	})

	GroupDesyncRepaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formgen_group_desync_repaired_total",
		Help: "Group membership inconsistencies repaired by the reconciliation sweep.",
	})

	OrphanCollectionsDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "formgen_orphan_collections",
		Help: "Companion collections without a backing form, as of the last sweep.",
	})

	ReconcileSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formgen_reconcile_sweeps_total",
		Help: "Completed reconciliation sweeps.",
	})
)

// RegisterMetricsEndpoint exposes Prometheus metrics on /metrics.
func RegisterMetricsEndpoint(router chi.Router) {
	router.Handle("/metrics", promhttp.Handler())
}
