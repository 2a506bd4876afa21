package conncache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/conncache/pkg/conncache"
)

func TestLifecycle_FatalErrorEvictsAndDisconnects(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	if _, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1}); err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	fake := adapter.Created()[0]

	fake.FireError(errors.New("read tcp: connection reset by peer"))

	waitFor(t, fake.Closed, "erroring connection to be disconnected")
	waitFor(t, func() bool {
		_, err := cache.GetConnection("h1", 1)
		return errors.Is(err, conncache.ErrNotCached)
	}, "erroring connection to be evicted")
}

func TestLifecycle_StaleErrorDoesNotEvictReplacement(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	if _, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1}); err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	old := adapter.Created()[0]

	// Replace, then let the old connection's error event fire late.
	replacement, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1, "opt": true})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	old.FireError(errors.New("late failure"))
	waitFor(t, old.Closed, "old connection to be disconnected")

	got, err := cache.GetConnection("h1", 1)
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	if got != replacement {
		t.Error("A stale error event must not evict the replacement connection")
	}
}

func TestLifecycle_NonFatalEventsLeaveCacheAlone(t *testing.T) {
	cache, adapter := setupCache(t)
	ctx := context.Background()

	conn, err := cache.SetConnection(ctx, conncache.Config{"host": "h1", "port": 1})
	if err != nil {
		t.Fatalf("SetConnection failed: %v", err)
	}
	fake := adapter.Created()[0]

	fake.FireReady()
	fake.FireReconnecting()

	got, err := cache.GetConnection("h1", 1)
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	if got != conn {
		t.Error("Non-fatal lifecycle events must not change the cached connection")
	}
	if fake.Closed() {
		t.Error("Non-fatal lifecycle events must not disconnect the connection")
	}
}
