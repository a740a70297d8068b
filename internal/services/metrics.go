// Package services – domain metrics.
//
// Counters for the two batch jobs, labeled coarsely to keep cardinality
// bounded. HTTP-level metrics live in the middleware package; these track
// business outcomes regardless of which trigger invoked the job.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// cartsSwept counts active records transitioned to abandoned.
	cartsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carts_swept_total",
		Help: "Total number of carts transitioned from active to abandoned.",
	})

	// remindersSent counts recovery emails dispatched, by stage.
	remindersSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_emails_sent_total",
		Help: "Total number of recovery reminder emails dispatched.",
	}, []string{"stage"})

	// reminderErrors counts per-record recovery failures (dispatch or
	// persistence), which never abort the batch.
	reminderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recovery_errors_total",
		Help: "Total number of per-record recovery dispatch failures.",
	})
)

func init() {
	prometheus.MustRegister(cartsSwept, remindersSent, reminderErrors)
}
