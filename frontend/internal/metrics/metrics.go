// Package metrics holds the chat session's domain counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadesk",
			Name:      "poll_cycles_total",
			Help:      "Pending-response fetches by outcome",
		},
		[]string{"result"},
	)

	ArtifactResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadesk",
			Name:      "artifact_resolutions_total",
			Help:      "Artifact resolutions by the tier that produced them",
		},
		[]string{"tier"},
	)

	ResolveAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mediadesk",
			Name:      "artifact_resolve_attempts",
			Help:      "Catalog refreshes needed per resolution",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediadesk",
			Name:      "commands_total",
			Help:      "Commands dispatched, by whether a video context was attached",
		},
		[]string{"video_context"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mediadesk",
			Name:      "active_sessions",
			Help:      "Chat sessions currently held by the UI server",
		},
	)
)

func ObservePoll(ok bool) {
	if ok {
		PollCycles.WithLabelValues("ok").Inc()
		return
	}
	PollCycles.WithLabelValues("error").Inc()
}
