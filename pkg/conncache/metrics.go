package conncache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups that found a cached connection
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conncache_hits_total",
			Help: "Total number of connection cache hits",
		},
	)

	// CacheMisses tracks lookups for endpoints with no cached connection
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conncache_misses_total",
			Help: "Total number of connection cache misses",
		},
	)

	// ConnectionsCreated tracks connections constructed through the adapter
	ConnectionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conncache_connections_created_total",
			Help: "Total number of connections constructed",
		},
	)

	// ConnectionsCached tracks the number of currently cached connections
	ConnectionsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conncache_connections_cached",
			Help: "Current number of cached connections",
		},
	)

	// Evictions tracks cache evictions by reason
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conncache_evictions_total",
			Help: "Total number of cache evictions by reason",
		},
		[]string{"reason"}, // "config_changed", "closing", "unusable", "error", "operation_failed", "delete", "clear"
	)

	// Relocations tracks relocation signals followed by the invoker
	Relocations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conncache_relocations_total",
			Help: "Total number of server relocation signals followed",
		},
	)

	// RelocationRetryFailures tracks retries that failed after a relocation
	RelocationRetryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conncache_relocation_retry_failures_total",
			Help: "Total number of failed retries after following a relocation",
		},
	)

	// Probes tracks usability probe outcomes
	Probes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conncache_probes_total",
			Help: "Total number of usability probes by result",
		},
		[]string{"result"}, // "usable", "unusable", "closing"
	)

	// DisconnectErrors tracks best-effort disconnects that reported an error
	DisconnectErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conncache_disconnect_errors_total",
			Help: "Total number of connection disconnect errors",
		},
	)
)
