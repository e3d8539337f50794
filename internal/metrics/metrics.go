package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the background loops, exposed on the sweeper's /metrics
// endpoint.
var (
	ReservationsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_swept_total",
		Help: "Number of pending reservations moved to expired by the sweeper",
	})

	SweepPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_passes_total",
		Help: "Number of sweeper passes executed",
	})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Number of outbox events successfully published to Kafka",
	})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Number of outbox events that failed to publish",
	})
)
