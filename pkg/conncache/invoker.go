package conncache

import (
	"context"
	"fmt"
)

// Invoke runs the named operation on conn with redirect-aware retry
// semantics:
//
//  1. On success the operation's result is returned.
//  2. On a relocation signal (the server points the caller at a different
//     endpoint, as clustered deployments do when data moves), the invoker
//     resolves the new endpoint, obtains or creates a connection for it
//     through SetConnection, and retries the same operation exactly once.
//     The migrated connection inherits the failing endpoint's last-known
//     configuration, falling back to the failing connection's own reported
//     options. If the retry also fails, the new connection is disconnected
//     and the retry's error is returned, not the original.
//  3. On any other failure the original connection is evicted and
//     disconnected in the background, and the error is returned.
//
// A second relocation on the retry is not followed; one automatic retry per
// logical call bounds both recursion and latency.
func (c *Cache) Invoke(ctx context.Context, conn Conn, op string, args ...any) (any, error) {
	result, err := conn.Do(ctx, op, args...)
	if err == nil {
		return result, nil
	}

	if !c.adapter.IsRelocation(err) {
		go c.evictConn(context.Background(), conn.Endpoint(), conn, "operation_failed")
		return nil, err
	}

	host, port, ok := c.adapter.RelocationTarget(err)
	if !ok {
		go c.evictConn(context.Background(), conn.Endpoint(), conn, "operation_failed")
		return nil, err
	}

	Relocations.Inc()
	from := conn.Endpoint()
	target := Endpoint{Host: host, Port: port}
	c.logger.Info().
		Str("endpoint", from.String()).
		Str("target", target.String()).
		Str("operation", op).
		Msg("Server relocated endpoint, migrating")

	cfg, cfgErr := c.ConfigurationUsed(from.Host, from.Port)
	if cfgErr != nil {
		cfg = conn.Configuration().Clone()
	}
	cfg[KeyHost] = host
	cfg[KeyPort] = port

	next, err := c.SetConnection(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("relocate to %s: %w", target, err)
	}

	// Retry directly against the new connection, bypassing Invoke: a
	// second relocation here surfaces as a plain failure.
	result, err = next.Do(ctx, op, args...)
	if err != nil {
		RelocationRetryFailures.Inc()
		c.logger.Warn().Err(err).
			Str("target", target.String()).
			Str("operation", op).
			Msg("Retry after relocation failed")
		go c.evictConn(context.Background(), target, next, "operation_failed")
		return nil, err
	}
	return result, nil
}
