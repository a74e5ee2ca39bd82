package node

import (
	"math"
	"time"

	"github.com/NethermindEth/stark-state/db"
	"github.com/prometheus/client_golang/prometheus"
)

func makeDBMetrics() db.EventListener {
	latencyBuckets := []float64{
		25,
		50,
		75,
		100,
		250,
		500,
		1000, // 1ms
		2000,
		3000,
		4000,
		5000,
		10000,
		50000,
		500000,
		math.Inf(0),
	}
	readLatencyHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "read_latency",
		Buckets:   latencyBuckets,
	})
	writeLatencyHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "write_latency",
		Buckets:   latencyBuckets,
	})
	commitLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "commit_latency",
		Buckets: []float64{
			5000,
			10000,
			20000,
			30000,
			40000,
			50000,
			100000, // 100ms
			200000,
			300000,
			500000,
			1000000,
			math.Inf(0),
		},
	})

	prometheus.MustRegister(readLatencyHistogram, writeLatencyHistogram, commitLatency)
	return &db.SelectiveListener{
		OnIOCb: func(write bool, duration time.Duration) {
			if write {
				writeLatencyHistogram.Observe(float64(duration.Microseconds()))
			} else {
				readLatencyHistogram.Observe(float64(duration.Microseconds()))
			}
		},
		OnCommitCb: func(duration time.Duration) {
			commitLatency.Observe(float64(duration.Microseconds()))
		},
	}
}

func makeStateMetrics() func(blockNumber uint64, modifications int) {
	blockNumber := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "state",
		Name:      "block_number",
	})
	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "state",
		Name:      "applied_blocks_total",
	})
	contracts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "state",
		Name:      "contract_updates_total",
	})

	prometheus.MustRegister(blockNumber, applied, contracts)
	return func(number uint64, modifications int) {
		blockNumber.Set(float64(number))
		applied.Inc()
		contracts.Add(float64(modifications))
	}
}
