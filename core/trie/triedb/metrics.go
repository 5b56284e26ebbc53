package triedb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nodeReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "committer",
		Subsystem: "triedb",
		Name:      "node_reads",
		Help:      "Trie node reads, labelled by the layer that served them.",
	}, []string{"source"})

	factsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "committer",
		Subsystem: "triedb",
		Name:      "facts",
		Help:      "Facts handed to Write, labelled by whether they were new.",
	}, []string{"result"})
)
