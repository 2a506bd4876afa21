package conncache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrNotCached indicates no connection is cached for the endpoint
	ErrNotCached = errors.New("connection not cached")
)

// Cache owns at most one live connection per endpoint, together with the
// configuration snapshot the connection was constructed from. All state is
// process-local and there is no expiry: entries leave the cache only through
// replacement, explicit deletion, clearing, or fatal connection errors.
type Cache struct {
	adapter Adapter
	logger  zerolog.Logger

	mu      sync.Mutex
	records map[Endpoint]*record
}

// record pairs a cached connection with the configuration snapshot used to
// construct it. The connection is exclusively owned by the record until
// evicted; eviction transfers disconnect responsibility to the evictor.
type record struct {
	conn   Conn
	config Config
}

// EvictOutcome reports the result of disconnecting one endpoint's
// connection during ClearAll.
type EvictOutcome struct {
	Endpoint Endpoint
	Err      error
}

// New creates a connection cache backed by the given adapter.
func New(adapter Adapter, logger zerolog.Logger) *Cache {
	if adapter == nil {
		panic("adapter cannot be nil")
	}
	return &Cache{
		adapter: adapter,
		logger:  logger.With().Str("component", "conncache").Logger(),
		records: make(map[Endpoint]*record),
	}
}

// GetConnection returns the cached connection for the endpoint, defaulting
// host and port if zero. Pure lookup: nothing is created or evicted, and a
// closing connection is returned as-is. Returns ErrNotCached on a miss.
func (c *Cache) GetConnection(host string, port int) (Conn, error) {
	endpoint := c.endpointOrDefault(host, port)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[endpoint]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrNotCached
	}
	CacheHits.Inc()
	return rec.conn, nil
}

// ConfigurationUsed returns a copy of the configuration snapshot the cached
// connection for the endpoint was constructed from. The copy is defensive:
// mutating it does not touch cache state. Returns ErrNotCached on a miss.
func (c *Cache) ConfigurationUsed(host string, port int) (Config, error) {
	endpoint := c.endpointOrDefault(host, port)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[endpoint]
	if !ok {
		return nil, ErrNotCached
	}
	return rec.config.Clone(), nil
}

// SetConnection returns a connection for the endpoint named by config,
// creating, reusing, or replacing the cached one.
//
// The decision procedure, in precedence order:
//
//  1. No cached connection for the endpoint: construct and cache one.
//  2. Caller supplied no options at all, or only host/port: reuse the
//     cached connection regardless of its stored options.
//  3. Caller options deep-equal the stored snapshot: reuse.
//  4. Options differ beyond host/port: evict, disconnect the old
//     connection in the background (failures logged, never propagated),
//     and construct a replacement with the new configuration.
//
// In cases 2 and 3 a connection that is already closing is evicted and
// rebuilt instead of handed out. config is copied up front; the caller may
// freely mutate the original afterwards.
func (c *Cache) SetConnection(ctx context.Context, config Config) (Conn, error) {
	cfg := config.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	endpoint := c.resolveEndpoint(cfg)

	rec, ok := c.records[endpoint]
	if !ok {
		return c.createLocked(ctx, cfg)
	}

	reuse := false
	switch {
	case len(config) == 0:
		// Caller just wants "the" connection for the default endpoint.
		reuse = true
	case cfg.EndpointOnly():
		// Host and port alone never force a replacement, whatever the
		// stored options are.
		reuse = true
	case cfg.Equal(rec.config):
		reuse = true
	}

	if reuse {
		if !rec.conn.IsClosing() {
			CacheHits.Inc()
			return rec.conn, nil
		}
		// Already closing: rebuild with the resolved configuration. The
		// old connection is tearing itself down, no disconnect needed.
		delete(c.records, endpoint)
		ConnectionsCached.Set(float64(len(c.records)))
		Evictions.WithLabelValues("closing").Inc()
		c.logger.Info().
			Str("endpoint", endpoint.String()).
			Msg("Cached connection is closing, replacing")
		return c.createLocked(ctx, cfg)
	}

	// Materially different configuration: replace. The old connection is
	// disconnected in the background; its outcome never affects this call.
	old := rec.conn
	delete(c.records, endpoint)
	ConnectionsCached.Set(float64(len(c.records)))
	Evictions.WithLabelValues("config_changed").Inc()
	c.logger.Info().
		Str("endpoint", endpoint.String()).
		Msg("Configuration changed, replacing cached connection")
	go c.closeLogged(context.Background(), old, "config changed")

	return c.createLocked(ctx, cfg)
}

// DeleteAndDisconnect evicts the endpoint's record and disconnects its
// connection. Eviction is synchronous and happens regardless of the
// disconnect outcome, which is returned as the error. deleted is false when
// nothing was cached for the endpoint.
func (c *Cache) DeleteAndDisconnect(ctx context.Context, host string, port int) (deleted bool, err error) {
	endpoint := c.endpointOrDefault(host, port)

	c.mu.Lock()
	rec, ok := c.records[endpoint]
	if ok {
		delete(c.records, endpoint)
		ConnectionsCached.Set(float64(len(c.records)))
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	Evictions.WithLabelValues("delete").Inc()

	if err := rec.conn.Close(ctx); err != nil {
		DisconnectErrors.Inc()
		return true, fmt.Errorf("disconnect %s: %w", endpoint, err)
	}
	return true, nil
}

// ClearAll evicts every record and disconnects every connection. Disconnect
// failures are captured per endpoint, never returned as a single error.
// Afterwards the cache is empty.
func (c *Cache) ClearAll(ctx context.Context) []EvictOutcome {
	c.mu.Lock()
	records := c.records
	c.records = make(map[Endpoint]*record)
	ConnectionsCached.Set(0)
	c.mu.Unlock()

	outcomes := make([]EvictOutcome, 0, len(records))
	for endpoint, rec := range records {
		Evictions.WithLabelValues("clear").Inc()
		outcome := EvictOutcome{Endpoint: endpoint}
		if err := rec.conn.Close(ctx); err != nil {
			DisconnectErrors.Inc()
			outcome.Err = fmt.Errorf("disconnect %s: %w", endpoint, err)
			c.logger.Warn().Err(err).
				Str("endpoint", endpoint.String()).
				Msg("Disconnect failed during clear")
		}
		outcomes = append(outcomes, outcome)
	}

	c.logger.Info().Int("connections", len(outcomes)).Msg("Cache cleared")
	return outcomes
}

// GetOrReplaceIfClosing returns the cached connection for the endpoint,
// rebuilding it from its last-known configuration when it is already
// closing or closed. Returns ErrNotCached when nothing is cached.
func (c *Cache) GetOrReplaceIfClosing(ctx context.Context, host string, port int) (Conn, error) {
	endpoint := c.endpointOrDefault(host, port)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[endpoint]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrNotCached
	}
	if !rec.conn.IsClosing() {
		CacheHits.Inc()
		return rec.conn, nil
	}

	delete(c.records, endpoint)
	ConnectionsCached.Set(float64(len(c.records)))
	Evictions.WithLabelValues("closing").Inc()
	c.logger.Info().
		Str("endpoint", endpoint.String()).
		Msg("Cached connection is closing, rebuilding from last-known configuration")

	return c.createLocked(ctx, rec.config.Clone())
}

// ReplaceIfUnusable probes the connection and returns it unchanged when the
// probe succeeds. Otherwise the endpoint's record is evicted, the old
// connection is disconnected in the background (best effort, logged), and a
// replacement is constructed from, in order of preference: config, the
// endpoint's last-known configuration, the connection's own reported
// construction options.
//
// The record is evicted only while it still holds exactly this connection.
// A stale handle whose endpoint was already taken over by a replacement
// gets the current cached connection back, and only the stale connection is
// disconnected.
func (c *Cache) ReplaceIfUnusable(ctx context.Context, conn Conn, config Config) (Conn, error) {
	if c.IsUsable(ctx, conn) {
		return conn, nil
	}

	endpoint := conn.Endpoint()

	c.mu.Lock()
	rec, cached := c.records[endpoint]
	if cached && rec.conn != conn {
		current := rec.conn
		c.mu.Unlock()
		c.logger.Info().
			Str("endpoint", endpoint.String()).
			Msg("Stale connection unusable, endpoint already replaced")
		go c.closeLogged(context.Background(), conn, "unusable")
		return current, nil
	}

	var base Config
	switch {
	case len(config) > 0:
		base = config.Clone()
	case cached && len(rec.config) > 0:
		base = rec.config.Clone()
	default:
		base = conn.Configuration().Clone()
	}
	if _, ok := base.Host(); !ok {
		base[KeyHost] = endpoint.Host
	}
	if _, ok := base.Port(); !ok {
		base[KeyPort] = endpoint.Port
	}

	if cached {
		delete(c.records, endpoint)
		ConnectionsCached.Set(float64(len(c.records)))
	}
	Evictions.WithLabelValues("unusable").Inc()
	c.logger.Info().
		Str("endpoint", endpoint.String()).
		Msg("Connection unusable, replacing")

	replacement, err := c.createLocked(ctx, base)
	c.mu.Unlock()

	go c.closeLogged(context.Background(), conn, "unusable")

	if err != nil {
		return nil, err
	}
	return replacement, nil
}

// createLocked constructs a connection for cfg, caches it under its
// resolved endpoint, and attaches the lifecycle hooks. The caller must hold
// c.mu. cfg must already be an isolated copy; it is mutated to carry the
// fully resolved host and port, and the stored snapshot is taken from it.
func (c *Cache) createLocked(ctx context.Context, cfg Config) (Conn, error) {
	endpoint := c.resolveEndpoint(cfg)
	snapshot := cfg.Clone()

	conn, err := c.adapter.CreateConnection(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection %s: %w", endpoint, err)
	}

	c.records[endpoint] = &record{conn: conn, config: snapshot}
	ConnectionsCreated.Inc()
	ConnectionsCached.Set(float64(len(c.records)))

	c.attachLifecycle(endpoint, conn)

	c.logger.Debug().
		Str("endpoint", endpoint.String()).
		Msg("Connection created and cached")
	return conn, nil
}

// resolveEndpoint fills missing host/port in cfg with the adapter defaults
// and writes them back, so cfg always fully specifies the endpoint used.
func (c *Cache) resolveEndpoint(cfg Config) Endpoint {
	host, ok := cfg.Host()
	if !ok {
		host = c.adapter.DefaultHost()
		cfg[KeyHost] = host
	}
	port, ok := cfg.Port()
	if !ok {
		port = c.adapter.DefaultPort()
		cfg[KeyPort] = port
	}
	return Endpoint{Host: host, Port: port}
}

// evictConn removes the endpoint's record if it still holds exactly this
// connection, then disconnects it. Run from detached goroutines on fatal
// connection errors and failed operations; the identity check keeps a
// late-firing event from evicting an unrelated replacement.
func (c *Cache) evictConn(ctx context.Context, endpoint Endpoint, conn Conn, reason string) {
	c.mu.Lock()
	if rec, ok := c.records[endpoint]; ok && rec.conn == conn {
		delete(c.records, endpoint)
		ConnectionsCached.Set(float64(len(c.records)))
		Evictions.WithLabelValues(reason).Inc()
	}
	c.mu.Unlock()

	c.closeLogged(ctx, conn, reason)
}

// closeLogged disconnects a connection best-effort. Errors are logged and
// dropped, never propagated to whichever call triggered the disconnect.
func (c *Cache) closeLogged(ctx context.Context, conn Conn, reason string) {
	if err := conn.Close(ctx); err != nil {
		DisconnectErrors.Inc()
		c.logger.Warn().Err(err).
			Str("endpoint", conn.Endpoint().String()).
			Str("reason", reason).
			Msg("Disconnect failed")
	}
}
