package conncache

import "context"

// Adapter supplies everything the cache needs from a concrete client
// implementation: connection construction, endpoint defaults, and
// recognition of server-issued relocation signals.
//
// See the redisadapter package for a production implementation.
type Adapter interface {
	// CreateConnection builds a connection handle for the given
	// configuration. The handle must be returned promptly: dialing happens
	// in the background, and transient connect failures surface through
	// lifecycle events or the usability probe, never through this call.
	// Errors from CreateConnection mean the configuration itself is
	// unusable.
	CreateConnection(ctx context.Context, cfg Config) (Conn, error)

	// DefaultHost and DefaultPort fill in endpoint fields the caller
	// omitted from a configuration.
	DefaultHost() string
	DefaultPort() int

	// IsRelocation reports whether an operation error is a server-issued
	// relocation signal (for redis clusters, a MOVED or ASK reply).
	IsRelocation(err error) bool

	// RelocationTarget extracts the endpoint a relocation signal points to.
	// ok is false when err is not a parseable relocation signal.
	RelocationTarget(err error) (host string, port int, ok bool)
}

// Conn is a live, stateful handle to a server at one endpoint. Named
// asynchronous operations are dispatched through Do against a static
// operation table owned by the adapter implementation.
type Conn interface {
	// Do runs the named operation. Operation names are adapter-defined;
	// every adapter must support OpPing for the usability probe.
	Do(ctx context.Context, op string, args ...any) (any, error)

	// IsClosing reports whether the connection has entered its closing or
	// closed state.
	IsClosing() bool

	// Endpoint returns the (host, port) this connection addresses.
	Endpoint() Endpoint

	// Configuration returns a copy of the options the connection was
	// constructed from.
	Configuration() Config

	// AddListeners registers lifecycle event callbacks. Nil callbacks are
	// skipped. Listeners registered after an event fired do not receive it
	// retroactively.
	AddListeners(l Listeners)

	// Close tears the connection down. Idempotent.
	Close(ctx context.Context) error
}

// Listeners bundles the lifecycle event callbacks the cache attaches to
// every connection it creates.
type Listeners struct {
	// OnConnect fires when the transport is established.
	OnConnect func()
	// OnReady fires when the connection can accept operations.
	OnReady func()
	// OnReconnecting fires when the connection lost its transport and is
	// re-establishing it.
	OnReconnecting func()
	// OnError fires on a fatal connection error. The cache responds by
	// evicting and disconnecting the connection.
	OnError func(err error)
	// OnClientError fires on low-level client errors that the connection
	// survives.
	OnClientError func(err error)
	// OnClosed fires once the connection is fully closed.
	OnClosed func()
}

// OpPing is the operation name the usability probe dispatches. Every
// adapter's operation table must implement it as a cheap round-trip.
const OpPing = "ping"
