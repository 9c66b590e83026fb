// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	updatesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updates_dispatched_total",
			Help: "Updates consumed by a step, labelled with the step name.",
		},
		[]string{"step"},
	)

	dispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_errors_total",
			Help: "Handler invocations that returned an error (update dropped).",
		},
		[]string{"step"},
	)

	dispatchFallthrough = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_fallthrough_total",
			Help: "Updates no registered step accepted.",
		},
	)

	stagesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stages_active",
			Help: "In-progress multi-step dialogs held in the stage store.",
		},
	)

	stagesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stages_expired_total",
			Help: "Dialog stages dropped by the TTL sweep.",
		},
	)

	votesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_recorded_total",
			Help: "Moderation votes accepted, by direction.",
		},
		[]string{"approve"},
	)

	itemsDecided = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_decided_total",
			Help: "Items leaving the pending state (approved/rejected/timeout).",
		},
		[]string{"outcome"},
	)

	itemsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "items_published_total",
			Help: "Approved items forwarded to their target channel.",
		},
	)

	queueRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_requests_total",
			Help: "Orchestration request/reply round trips, by topic and success.",
		},
		[]string{"topic", "success"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			updatesDispatched, dispatchErrors, dispatchFallthrough,
			stagesActive, stagesExpired,
			votesRecorded, itemsDecided, itemsPublished,
			queueRequests,
		)
	})
}

func IncDispatched(step string)     { updatesDispatched.WithLabelValues(step).Inc() }
func IncDispatchError(step string)  { dispatchErrors.WithLabelValues(step).Inc() }
func IncDispatchFallthrough()       { dispatchFallthrough.Inc() }
func SetStagesActive(n int)         { stagesActive.Set(float64(n)) }
func IncStagesExpired(n int)        { stagesExpired.Add(float64(n)) }
func IncVoteRecorded(approve bool)  { votesRecorded.WithLabelValues(strconv.FormatBool(approve)).Inc() }
func IncItemDecided(outcome string) { itemsDecided.WithLabelValues(outcome).Inc() }
func IncItemPublished()             { itemsPublished.Inc() }

func IncQueueRequest(topic string, success bool) {
	queueRequests.WithLabelValues(topic, strconv.FormatBool(success)).Inc()
}
