package trie

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "committer",
		Subsystem: "trie",
		Name:      "commit_duration_seconds",
		Help:      "Time spent committing one update batch to one trie",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"trie"})

	nodesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "committer",
		Subsystem: "trie",
		Name:      "nodes_created_total",
		Help:      "Number of new node facts produced by commits",
	}, []string{"trie", "kind"})

	nodesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "committer",
		Subsystem: "trie",
		Name:      "nodes_resolved_total",
		Help:      "Number of previous nodes loaded from the store while committing or reading",
	}, []string{"trie"})
)

// nodeCounts tallies the facts of one commit so the counters are touched
// once per commit instead of once per node.
type nodeCounts struct {
	binary, edge, leaf int
}

func (c *nodeCounts) flush(trie string) {
	nodesCreated.WithLabelValues(trie, "binary").Add(float64(c.binary))
	nodesCreated.WithLabelValues(trie, "edge").Add(float64(c.edge))
	nodesCreated.WithLabelValues(trie, "leaf").Add(float64(c.leaf))
}
