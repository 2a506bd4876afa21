// Package metrics provides the centralized Prometheus metrics registry for
// the connection cache. All metrics are defined in their respective packages
// (conncache, redisadapter) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the connection cache.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/conncache):
//   - conncache_hits_total (Counter): Lookups that found a cached connection
//   - conncache_misses_total (Counter): Lookups with no cached connection
//   - conncache_connections_created_total (Counter): Connections constructed through the adapter
//   - conncache_connections_cached (Gauge): Currently cached connections
//   - conncache_evictions_total{reason} (Counter): Evictions by reason
//     (config_changed, closing, unusable, error, operation_failed, delete, clear)
//   - conncache_disconnect_errors_total (Counter): Best-effort disconnects that failed
//
// Invoker Metrics (pkg/conncache):
//   - conncache_relocations_total (Counter): Server relocation signals followed
//   - conncache_relocation_retry_failures_total (Counter): Failed retries after a relocation
//
// Probe Metrics (pkg/conncache):
//   - conncache_probes_total{result} (Counter): Usability probes by result
//     (usable, unusable, closing)
//
// Adapter Metrics (pkg/redisadapter):
//   - conncache_redis_operations_total{operation, status} (Counter): Redis operations dispatched
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(conncache_hits_total[5m])) /
//   (sum(rate(conncache_hits_total[5m])) + sum(rate(conncache_misses_total[5m])))
//
//   # Reconnect Churn (replacements per minute)
//   sum(rate(conncache_evictions_total{reason=~"config_changed|closing|unusable"}[1m])) * 60
//
//   # Relocation Activity
//   rate(conncache_relocations_total[5m])
//
//   # Probe Failure Ratio
//   rate(conncache_probes_total{result!="usable"}[5m]) /
//   rate(conncache_probes_total[5m])
