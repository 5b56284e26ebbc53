package state

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	phaseValidate = "validate"
	phaseStorage  = "storage"
	phaseGlobal   = "global"
	phasePersist  = "persist"
)

var (
	commitPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "committer",
		Subsystem: "state",
		Name:      "commit_phase_duration_seconds",
		Help:      "Time spent in each phase of a forest commit",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"phase"})

	contractsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "committer",
		Subsystem: "state",
		Name:      "contracts_committed_total",
		Help:      "Number of contract storage tries committed, by outcome",
	}, []string{"result"})

	commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "committer",
		Subsystem: "state",
		Name:      "commits_total",
		Help:      "Number of forest commits, by outcome",
	}, []string{"result"})
)

func observePhase(phase string, start time.Time) {
	commitPhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
