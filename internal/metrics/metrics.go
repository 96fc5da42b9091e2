// Package metrics exposes the Prometheus series an indexer worker reports,
// labeled by indexer name (and, for the cycle-duration and watermark series,
// by chain ID) so the operator plane (spec.md §4.9) can track fleet health
// per worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration observes how long one worker cycle takes end to end
	// (sleep excluded): RPC calls, decoding, and persistence.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evm_indexer",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of one indexer worker cycle.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"indexer", "chain_id"})

	// LastProcessedBlock tracks the watermark an indexer has advanced to.
	LastProcessedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "evm_indexer",
		Name:      "last_processed_block",
		Help:      "Last block number the indexer has fully processed.",
	}, []string{"indexer", "chain_id"})

	// RecordsPersisted counts rows written per cycle, split by kind.
	RecordsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm_indexer",
		Name:      "records_persisted_total",
		Help:      "Number of transfer/balance rows persisted.",
	}, []string{"indexer", "kind"})

	// FetchErrors counts fetcher/caller failures that caused a skip.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm_indexer",
		Name:      "fetch_errors_total",
		Help:      "Number of fetcher or balance caller errors that caused a skip.",
	}, []string{"indexer"})
)
