package trie

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readRounds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stark_state",
		Subsystem: "trie",
		Name:      "read_rounds_total",
		Help:      "Batched node reads issued to storage.",
	})
	nodesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stark_state",
		Subsystem: "trie",
		Name:      "nodes_read_total",
		Help:      "Inner node preimages fetched from storage.",
	})
	factsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stark_state",
		Subsystem: "trie",
		Name:      "facts_written_total",
		Help:      "Node and leaf facts written by updates.",
	})
)
