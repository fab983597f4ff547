// Package metrics defines the prometheus collectors for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WindowsProcessed tracks committed scan windows per source
	WindowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_windows_processed_total",
			Help: "Total number of scan windows committed",
		},
		[]string{"source"},
	)

	// CycleFailures tracks abandoned sync cycles per source
	CycleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_cycle_failures_total",
			Help: "Total number of sync cycles abandoned without commit",
		},
		[]string{"source"},
	)

	// EventsApplied tracks decoded events applied per event kind
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_events_applied_total",
			Help: "Total number of decoded events applied to entities",
		},
		[]string{"kind"},
	)

	// EventsSkipped tracks events dropped by the out-of-range safety valve
	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_events_skipped_total",
			Help: "Total number of events skipped (out-of-range values)",
		},
		[]string{"kind"},
	)

	// EntityWrites tracks upserts per entity table
	EntityWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_entity_writes_total",
			Help: "Total number of entity upserts staged",
		},
		[]string{"entity"},
	)

	// RPCCallsTotal tracks JSON-RPC calls per node and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_rpc_calls_total",
			Help: "Total number of JSON-RPC calls",
		},
		[]string{"node", "method"},
	)

	// RPCErrorsTotal tracks JSON-RPC failures per node
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgersync_rpc_errors_total",
			Help: "Total number of failed JSON-RPC calls",
		},
		[]string{"node"},
	)

	// RPCLatency tracks JSON-RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgersync_rpc_latency_seconds",
			Help:    "JSON-RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node", "method"},
	)

	// ChainHead tracks the chain head observed at scheduling time
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgersync_chain_head",
			Help: "Latest block height observed on the chain",
		},
	)

	// CheckpointHeight tracks the committed checkpoint per source
	CheckpointHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgersync_checkpoint_height",
			Help: "Highest block fully processed per source",
		},
		[]string{"source"},
	)
)
