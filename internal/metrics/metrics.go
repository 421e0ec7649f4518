package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus instruments on a private registry.
type Collector struct {
	reg *prometheus.Registry

	ReservationsHeld      prometheus.Counter
	ReservationsConfirmed prometheus.Counter
	ReservationsReleased  prometheus.Counter
	CapacityRejections    prometheus.Counter

	OccurrencesScheduled prometheus.Counter
	OccurrencesCancelled prometheus.Counter

	LedgerTxDuration prometheus.Histogram
	LedgerTxRetries  prometheus.Counter

	EventsPublished   prometheus.Counter
	EventsPublishErrs prometheus.Counter
}

// NewCollector creates and registers the service's instruments.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ReservationsHeld: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_holds_total",
			Help: "Total reservations created in held state.",
		}),
		ReservationsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_confirmations_total",
			Help: "Total reservations confirmed to occupied.",
		}),
		ReservationsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_releases_total",
			Help: "Total reservations released (cancelled or rejected).",
		}),
		CapacityRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_capacity_rejections_total",
			Help: "Total reservation attempts rejected for insufficient segment capacity.",
		}),
		OccurrencesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trip_occurrences_scheduled_total",
			Help: "Total trip occurrences materialized.",
		}),
		OccurrencesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trip_occurrences_cancelled_total",
			Help: "Total trip occurrences cancelled.",
		}),
		LedgerTxDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transaction_duration_seconds",
			Help:    "Duration of atomic ledger range transactions.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		LedgerTxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transaction_retries_total",
			Help: "Total ledger transactions retried after serialization conflicts.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total Kafka events published.",
		}),
		EventsPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_publish_errors_total",
			Help: "Total Kafka publish errors.",
		}),
	}

	reg.MustRegister(
		c.ReservationsHeld, c.ReservationsConfirmed, c.ReservationsReleased,
		c.CapacityRejections,
		c.OccurrencesScheduled, c.OccurrencesCancelled,
		c.LedgerTxDuration, c.LedgerTxRetries,
		c.EventsPublished, c.EventsPublishErrs,
	)

	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
