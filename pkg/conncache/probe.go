package conncache

import "context"

// IsUsable empirically verifies that a connection is currently functional
// by running a ping round-trip through Invoke. A connection that already
// reports itself as closing is unusable without probing. The probe absorbs
// every failure into a boolean; it never returns an error. Because the
// probe goes through Invoke, a failing connection is also torn down as a
// side effect, and a relocated one is chased to its new endpoint.
func (c *Cache) IsUsable(ctx context.Context, conn Conn) bool {
	if conn == nil || conn.IsClosing() {
		Probes.WithLabelValues("closing").Inc()
		return false
	}

	if _, err := c.Invoke(ctx, conn, OpPing); err != nil {
		Probes.WithLabelValues("unusable").Inc()
		c.logger.Debug().Err(err).
			Str("endpoint", conn.Endpoint().String()).
			Msg("Usability probe failed")
		return false
	}

	Probes.WithLabelValues("usable").Inc()
	return true
}
