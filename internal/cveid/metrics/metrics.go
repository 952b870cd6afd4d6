package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the identifier allocator.
type Metrics struct {
	Reservations       *prometheus.CounterVec
	ReservationLatency prometheus.Histogram
	ClaimsWon          prometheus.Counter
	ClaimsLost         prometheus.Counter
	PoolExtensions     *prometheus.CounterVec
	IDsMaterialized    prometheus.Counter
	RefreshSize        prometheus.Histogram
}

// New registers all allocator metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cve_registry_reservations_total",
			Help: "Non-sequential reservation requests by outcome",
		}, []string{"status", "reason"}),
		ReservationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cve_registry_reservation_duration_seconds",
			Help:    "Time spent serving a reservation request",
			Buckets: prometheus.DefBuckets,
		}),
		ClaimsWon: f.NewCounter(prometheus.CounterOpts{
			Name: "cve_registry_claims_won_total",
			Help: "Conditional claims that reserved an identifier",
		}),
		ClaimsLost: f.NewCounter(prometheus.CounterOpts{
			Name: "cve_registry_claims_lost_total",
			Help: "Conditional claims lost to a concurrent request",
		}),
		PoolExtensions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cve_registry_pool_extensions_total",
			Help: "Attempts to raise a year's staging high-water mark by outcome",
		}, []string{"outcome"}),
		IDsMaterialized: f.NewCounter(prometheus.CounterOpts{
			Name: "cve_registry_ids_materialized_total",
			Help: "Identifiers staged as AVAILABLE",
		}),
		RefreshSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cve_registry_refresh_candidates",
			Help:    "AVAILABLE candidates returned per cache refresh",
			Buckets: []float64{0, 1, 10, 50, 100, 300, 1000},
		}),
	}
}

func (m *Metrics) ObserveReservation(status, reason string, started time.Time) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(status, reason).Inc()
	m.ReservationLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncClaimWon() {
	if m == nil {
		return
	}
	m.ClaimsWon.Inc()
}

func (m *Metrics) IncClaimLost() {
	if m == nil {
		return
	}
	m.ClaimsLost.Inc()
}

// ObserveExtension records one ledger extension. outcome is "granted",
// "full" or "not_provisioned".
func (m *Metrics) ObserveExtension(outcome string) {
	if m == nil {
		return
	}
	m.PoolExtensions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddMaterialized(n int) {
	if m == nil {
		return
	}
	m.IDsMaterialized.Add(float64(n))
}

func (m *Metrics) ObserveRefresh(n int) {
	if m == nil {
		return
	}
	m.RefreshSize.Observe(float64(n))
}
