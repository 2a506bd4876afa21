package conncache

import "context"

// attachLifecycle wires the standard event callbacks onto a freshly created
// connection. A fatal error evicts and disconnects the connection that
// raised it: an erroring connection is assumed compromised and is torn down
// rather than left cached.
func (c *Cache) attachLifecycle(endpoint Endpoint, conn Conn) {
	logger := c.logger.With().Str("endpoint", endpoint.String()).Logger()

	conn.AddListeners(Listeners{
		OnConnect: func() {
			logger.Debug().Msg("Connection established")
		},
		OnReady: func() {
			logger.Debug().Msg("Connection ready")
		},
		OnReconnecting: func() {
			logger.Warn().Msg("Connection reconnecting")
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("Connection error, evicting")
			go c.evictConn(context.Background(), endpoint, conn, "error")
		},
		OnClientError: func(err error) {
			logger.Warn().Err(err).Msg("Low-level client error")
		},
		OnClosed: func() {
			logger.Debug().Msg("Connection closed")
		},
	})
}
