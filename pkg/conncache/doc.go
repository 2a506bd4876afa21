// Package conncache caches long-lived, stateful client connections keyed by
// server endpoint (host, port) and manages their lifecycle.
//
// Establishing such a connection is expensive, so the cache holds at most
// one live connection per endpoint and decides on every request whether the
// cached one can be reused or must be replaced:
//
// - A request without options, or with only host and port, always reuses
// - A request whose options deep-equal the stored snapshot reuses
// - Any materially different configuration replaces the connection
// - A connection that is already closing is rebuilt instead of handed out
//
// On top of the cache sit a usability probe (ping round-trip, never errors,
// converts failures into replacement) and a redirect-aware invoker that
// transparently follows server relocation signals (redis cluster MOVED/ASK
// style) to a new endpoint and retries the operation exactly once.
//
// # Basic Usage
//
//	adapter := redisadapter.New(redisadapter.DefaultConfig(), logger)
//	cache := conncache.New(adapter, logger)
//	defer cache.ClearAll(context.Background())
//
//	conn, err := cache.SetConnection(ctx, conncache.Config{
//		"host": "redis-1.internal",
//		"port": 6379,
//	})
//	if err != nil {
//		return err
//	}
//
//	// Named operations with relocation handling:
//	value, err := cache.Invoke(ctx, conn, "get", "some-key")
//
//	// Validate before a critical reuse path:
//	conn, err = cache.ReplaceIfUnusable(ctx, conn, nil)
//
// # Concurrency
//
// All cache mutations are serialized by an internal mutex; adapters must
// return connection handles promptly and dial in the background, so a
// concurrent caller may observe a connection that is still connecting.
// Background disconnects are detached: their failures are logged and
// counted, never propagated. Calls for the same endpoint are not mutually
// excluded while an asynchronous disconnect or probe is pending.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - conncache_hits_total / conncache_misses_total - Cache lookups
//   - conncache_connections_created_total - Connections constructed
//   - conncache_connections_cached - Currently cached connections
//   - conncache_evictions_total{reason} - Evictions by reason
//   - conncache_relocations_total - Relocation signals followed
//   - conncache_relocation_retry_failures_total - Failed post-relocation retries
//   - conncache_probes_total{result} - Usability probe outcomes
//   - conncache_disconnect_errors_total - Best-effort disconnect failures
package conncache
