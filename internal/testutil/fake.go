// Package testutil provides testing utilities for the connection cache.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/conncache/pkg/conncache"
)

// FakeOp is a scripted operation on a fake connection.
type FakeOp func(conn *FakeConn, args ...any) (any, error)

// RelocationErr simulates a server relocation signal pointing at a new
// endpoint. A zero Host simulates a relocation signal whose target cannot
// be resolved.
type RelocationErr struct {
	Host string
	Port int
}

// Error implements the error interface.
func (e *RelocationErr) Error() string {
	return fmt.Sprintf("relocated to %s:%d", e.Host, e.Port)
}

// FakeAdapter is a configurable in-memory implementation of
// conncache.Adapter.
type FakeAdapter struct {
	// Host and Port are the endpoint defaults.
	Host string
	Port int

	// CreateErr, when set, fails every CreateConnection call.
	CreateErr error

	mu      sync.Mutex
	ops     map[string]FakeOp
	created []*FakeConn
}

// NewFakeAdapter creates a fake adapter with sensible defaults and a ping
// operation that always succeeds.
func NewFakeAdapter() *FakeAdapter {
	a := &FakeAdapter{
		Host: "localhost",
		Port: 6400,
		ops:  make(map[string]FakeOp),
	}
	a.SetOp(conncache.OpPing, func(*FakeConn, ...any) (any, error) {
		return "PONG", nil
	})
	return a
}

// SetOp installs or replaces a scripted operation shared by all
// connections this adapter creates.
func (a *FakeAdapter) SetOp(name string, op FakeOp) {
	a.mu.Lock()
	a.ops[name] = op
	a.mu.Unlock()
}

// Created returns every connection the adapter constructed, in order.
func (a *FakeAdapter) Created() []*FakeConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*FakeConn, len(a.created))
	copy(out, a.created)
	return out
}

// CreateCount returns how many connections the adapter constructed.
func (a *FakeAdapter) CreateCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.created)
}

// CreateConnection implements conncache.Adapter.
func (a *FakeAdapter) CreateConnection(_ context.Context, cfg conncache.Config) (conncache.Conn, error) {
	if a.CreateErr != nil {
		return nil, a.CreateErr
	}

	host, ok := cfg.Host()
	if !ok {
		host = a.Host
	}
	port, ok := cfg.Port()
	if !ok {
		port = a.Port
	}

	conn := &FakeConn{
		adapter:  a,
		endpoint: conncache.Endpoint{Host: host, Port: port},
		config:   cfg.Clone(),
	}

	a.mu.Lock()
	a.created = append(a.created, conn)
	a.mu.Unlock()
	return conn, nil
}

// DefaultHost implements conncache.Adapter.
func (a *FakeAdapter) DefaultHost() string { return a.Host }

// DefaultPort implements conncache.Adapter.
func (a *FakeAdapter) DefaultPort() int { return a.Port }

// IsRelocation implements conncache.Adapter.
func (a *FakeAdapter) IsRelocation(err error) bool {
	var rel *RelocationErr
	return errors.As(err, &rel)
}

// RelocationTarget implements conncache.Adapter.
func (a *FakeAdapter) RelocationTarget(err error) (string, int, bool) {
	var rel *RelocationErr
	if !errors.As(err, &rel) || rel.Host == "" {
		return "", 0, false
	}
	return rel.Host, rel.Port, true
}

// FakeConn is an in-memory connection created by FakeAdapter. Operations
// dispatch against the adapter's scripted table; lifecycle events are fired
// explicitly by tests through the Fire helpers.
type FakeConn struct {
	adapter  *FakeAdapter
	endpoint conncache.Endpoint
	config   conncache.Config

	mu        sync.Mutex
	closing   bool
	closed    bool
	closeErr  error
	calls     []string
	listeners []conncache.Listeners
}

// Do implements conncache.Conn by dispatching to the adapter's scripted
// operation table.
func (c *FakeConn) Do(_ context.Context, op string, args ...any) (any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, op)
	c.mu.Unlock()

	c.adapter.mu.Lock()
	fn, ok := c.adapter.ops[op]
	c.adapter.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	return fn(c, args...)
}

// IsClosing implements conncache.Conn.
func (c *FakeConn) IsClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// Endpoint implements conncache.Conn.
func (c *FakeConn) Endpoint() conncache.Endpoint { return c.endpoint }

// Configuration implements conncache.Conn.
func (c *FakeConn) Configuration() conncache.Config {
	return c.config.Clone()
}

// AddListeners implements conncache.Conn.
func (c *FakeConn) AddListeners(l conncache.Listeners) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Close implements conncache.Conn.
func (c *FakeConn) Close(_ context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.closed = true
	err := c.closeErr
	c.mu.Unlock()

	for _, l := range c.snapshotListeners() {
		if l.OnClosed != nil {
			l.OnClosed()
		}
	}
	return err
}

// SetClosing marks the connection as closing without closing it, simulating
// a connection mid-teardown.
func (c *FakeConn) SetClosing(v bool) {
	c.mu.Lock()
	c.closing = v
	c.mu.Unlock()
}

// SetCloseErr makes subsequent Close calls return err.
func (c *FakeConn) SetCloseErr(err error) {
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Calls returns the operation names dispatched on this connection, in order.
func (c *FakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// FireError fires the fatal-error lifecycle event on all listeners.
func (c *FakeConn) FireError(err error) {
	for _, l := range c.snapshotListeners() {
		if l.OnError != nil {
			l.OnError(err)
		}
	}
}

// FireReady fires the connect and ready lifecycle events on all listeners.
func (c *FakeConn) FireReady() {
	for _, l := range c.snapshotListeners() {
		if l.OnConnect != nil {
			l.OnConnect()
		}
		if l.OnReady != nil {
			l.OnReady()
		}
	}
}

// FireReconnecting fires the reconnecting lifecycle event on all listeners.
func (c *FakeConn) FireReconnecting() {
	for _, l := range c.snapshotListeners() {
		if l.OnReconnecting != nil {
			l.OnReconnecting()
		}
	}
}

func (c *FakeConn) snapshotListeners() []conncache.Listeners {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]conncache.Listeners, len(c.listeners))
	copy(out, c.listeners)
	return out
}
