package conncache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/conncache/internal/testutil"
	"github.com/Sternrassler/conncache/pkg/conncache"
)

func TestIsUsable_Usable(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}

	if !cache.IsUsable(ctx, conn) {
		t.Error("Expected a responsive connection to be usable")
	}
}

func TestIsUsable_ClosingShortCircuits(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	fake := adapter.Created()[0]
	fake.SetClosing(true)

	if cache.IsUsable(ctx, conn) {
		t.Error("A closing connection must be unusable")
	}
	// No probe round-trip is attempted against a closing connection.
	for _, call := range fake.Calls() {
		if call == conncache.OpPing {
			t.Error("Closing connection must not be pinged")
		}
	}
}

func TestIsUsable_ProbeFailure(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	adapter.SetOp(conncache.OpPing, func(*testutil.FakeConn, ...any) (any, error) {
		return nil, errors.New("connection reset")
	})

	if cache.IsUsable(ctx, conn) {
		t.Error("Expected a failing probe to report unusable")
	}
}

func TestIsUsable_NilConnection(t *testing.T) {
	cache, _ := setupCache(t)

	if cache.IsUsable(context.Background(), nil) {
		t.Error("A nil connection must be unusable")
	}
}

func TestReplaceIfUnusable_KeepsUsableConnection(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}

	got, err := cache.ReplaceIfUnusable(ctx, conn, nil)
	if err != nil {
		t.Fatalf("ReplaceIfUnusable failed: %v", err)
	}
	if got != conn {
		t.Error("A usable connection must be returned unchanged")
	}
	if adapter.CreateCount() != 1 {
		t.Errorf("Expected no replacement construction, got %d", adapter.CreateCount())
	}
}

func TestReplaceIfUnusable_ReplacesFailingConnection(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1, "opt": "v"})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	adapter.SetOp(conncache.OpPing, func(*testutil.FakeConn, ...any) (any, error) {
		return nil, errors.New("connection reset")
	})

	got, err := cache.ReplaceIfUnusable(ctx, conn, nil)
	if err != nil {
		t.Fatalf("ReplaceIfUnusable failed: %v", err)
	}
	if got == conn {
		t.Fatal("Expected a different connection instance")
	}

	// The cache reflects the new instance under the same endpoint.
	cached, err := cache.GetConnection("h1", 1)
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	if cached != got {
		t.Error("Cache should hold the replacement connection")
	}

	// Replacement was built from the last-known configuration.
	used, err := cache.ConfigurationUsed("h1", 1)
	if err != nil {
		t.Fatalf("ConfigurationUsed failed: %v", err)
	}
	if used["opt"] != "v" {
		t.Errorf("Replacement lost the stored configuration: %v", used)
	}

	// The old connection is disconnected best-effort.
	waitFor(t, adapter.Created()[0].Closed, "old connection to be disconnected")
}

func TestReplaceIfUnusable_StaleHandleKeepsReplacement(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	connA, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1, "opt": "a"})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	// A config change replaces connA; the caller still holds its handle.
	connB, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1, "opt": "b"})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}

	stale := adapter.Created()[0]
	adapter.SetOp(conncache.OpPing, func(conn *testutil.FakeConn, _ ...any) (any, error) {
		if conn == stale {
			return nil, errors.New("connection reset")
		}
		return "PONG", nil
	})

	got, err := cache.ReplaceIfUnusable(ctx, connA, nil)
	if err != nil {
		t.Fatalf("ReplaceIfUnusable failed: %v", err)
	}
	if got != connB {
		t.Error("A stale handle must get the current cached connection back")
	}

	// The replacement stays cached and alive; no third connection is built.
	cached, err := cache.GetConnection("h1", 1)
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	if cached != connB {
		t.Error("Cache should still hold the replacement connection")
	}
	if adapter.CreateCount() != 2 {
		t.Errorf("Expected no construction for a stale handle, got %d", adapter.CreateCount())
	}
	if adapter.Created()[1].Closed() {
		t.Error("Replacement connection must not be disconnected")
	}
	waitFor(t, stale.Closed, "stale connection to be disconnected")
}

func TestReplaceIfUnusable_ExplicitConfigWins(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1, "opt": "old"})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	adapter.SetOp(conncache.OpPing, func(*testutil.FakeConn, ...any) (any, error) {
		return nil, errors.New("connection reset")
	})

	got, err := cache.ReplaceIfUnusable(ctx, conn, conncache.Config{"host": "h1", "port": 1, "opt": "new"})
	if err != nil {
		t.Fatalf("ReplaceIfUnusable failed: %v", err)
	}
	if got == conn {
		t.Fatal("Expected a replacement")
	}

	used, err := cache.ConfigurationUsed("h1", 1)
	if err != nil {
		t.Fatalf("ConfigurationUsed failed: %v", err)
	}
	if used["opt"] != "new" {
		t.Errorf("Explicit configuration should win, got %v", used)
	}
}
