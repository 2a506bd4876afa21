package redisadapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/conncache/pkg/conncache"
)

var (
	// redisOperations tracks dispatched operations by name and status
	redisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conncache_redis_operations_total",
			Help: "Total number of redis operations dispatched by the adapter",
		},
		[]string{"operation", "status"}, // status: "ok", "error"
	)
)

// Operation names in the adapter's static dispatch table.
const (
	OpPing    = conncache.OpPing
	OpEcho    = "echo"
	OpGet     = "get"
	OpSet     = "set"
	OpDel     = "del"
	OpPublish = "publish"
)

// ErrUnknownOperation indicates an operation name outside the adapter's
// dispatch table.
var ErrUnknownOperation = errors.New("unknown operation")

// Conn is a cache-managed connection backed by a go-redis client. The
// client dials lazily and reconnects internally, so the reconnecting and
// fatal-error lifecycle events stay quiet here; connected fires on every
// transport establishment and closed fires once on Close.
type Conn struct {
	client   *redis.Client
	endpoint conncache.Endpoint
	config   conncache.Config
	logger   zerolog.Logger

	closing atomic.Bool

	mu        sync.Mutex
	listeners []conncache.Listeners
}

func newConn(endpoint conncache.Endpoint, cfg conncache.Config, logger zerolog.Logger) *Conn {
	return &Conn{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With().Str("endpoint", endpoint.String()).Logger(),
	}
}

// Do dispatches a named operation against the static operation table.
//
// A "get" on a missing key resolves to a nil result rather than an error:
// the cache treats operation errors as connection failures, and a cache
// miss says nothing about connection health.
func (c *Conn) Do(ctx context.Context, op string, args ...any) (any, error) {
	result, err := c.dispatch(ctx, op, args...)
	if err != nil {
		redisOperations.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	redisOperations.WithLabelValues(op, "ok").Inc()
	return result, nil
}

func (c *Conn) dispatch(ctx context.Context, op string, args ...any) (any, error) {
	switch op {
	case OpPing:
		return c.client.Ping(ctx).Result()

	case OpEcho:
		if len(args) != 1 {
			return nil, fmt.Errorf("echo: want 1 argument, got %d", len(args))
		}
		return c.client.Echo(ctx, args[0]).Result()

	case OpGet:
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		value, err := c.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return value, nil

	case OpSet:
		key, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("set: want 2 arguments, got %d", len(args))
		}
		return c.client.Set(ctx, key, args[1], 0).Result()

	case OpDel:
		keys := make([]string, len(args))
		for i := range args {
			key, err := argString(op, args, i)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		return c.client.Del(ctx, keys...).Result()

	case OpPublish:
		channel, err := argString(op, args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("publish: want 2 arguments, got %d", len(args))
		}
		return c.client.Publish(ctx, channel, args[1]).Result()

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

func argString(op string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d", op, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d: expected string, got %T", op, i, args[i])
	}
	return s, nil
}

// IsClosing reports whether Close has been called.
func (c *Conn) IsClosing() bool {
	return c.closing.Load()
}

// Endpoint returns the (host, port) this connection addresses.
func (c *Conn) Endpoint() conncache.Endpoint {
	return c.endpoint
}

// Configuration returns a copy of the construction options.
func (c *Conn) Configuration() conncache.Config {
	return c.config.Clone()
}

// AddListeners registers lifecycle callbacks.
func (c *Conn) AddListeners(l conncache.Listeners) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Close tears the connection down and fires the closed event. Idempotent:
// only the first call closes the underlying client.
func (c *Conn) Close(ctx context.Context) error {
	if c.closing.Swap(true) {
		return nil
	}

	err := c.client.Close()
	c.fireClosed()
	if err != nil {
		return fmt.Errorf("close redis client %s: %w", c.endpoint, err)
	}
	return nil
}

func (c *Conn) snapshotListeners() []conncache.Listeners {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conncache.Listeners, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// fireConnected fires the connect and ready events. go-redis invokes this
// through its OnConnect hook once the transport is established and the
// connection accepted authentication, so both events coincide here.
func (c *Conn) fireConnected() {
	c.logger.Debug().Msg("Redis transport established")
	for _, l := range c.snapshotListeners() {
		if l.OnConnect != nil {
			l.OnConnect()
		}
		if l.OnReady != nil {
			l.OnReady()
		}
	}
}

func (c *Conn) fireClosed() {
	for _, l := range c.snapshotListeners() {
		if l.OnClosed != nil {
			l.OnClosed()
		}
	}
}
