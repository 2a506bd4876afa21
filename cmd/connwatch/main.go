// Command connwatch maintains cached connections to a set of redis
// endpoints, probes them on an interval, and exposes health and prometheus
// metrics endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/conncache/pkg/conncache"
	"github.com/Sternrassler/conncache/pkg/logging"
	"github.com/Sternrassler/conncache/pkg/redisadapter"
)

func main() {
	// Configuration from environment
	endpointList := getEnv("CONNWATCH_ENDPOINTS", "localhost:6379")
	port := getEnv("PORT", "8080")
	probeInterval := getEnvDuration("PROBE_INTERVAL", 15*time.Second)

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	}).With().Str("component", "connwatch").Logger()

	endpoints, err := parseEndpoints(endpointList)
	if err != nil {
		logger.Fatal().Err(err).Str("endpoints", endpointList).Msg("Invalid endpoint list")
	}

	adapter := redisadapter.New(redisadapter.DefaultConfig(), logger)
	cache := conncache.New(adapter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Establish the initial connections.
	for _, endpoint := range endpoints {
		if _, err := cache.SetConnection(ctx, conncache.Config{
			"host": endpoint.Host,
			"port": endpoint.Port,
		}); err != nil {
			logger.Error().Err(err).Str("endpoint", endpoint.String()).Msg("Initial connection failed")
		}
	}

	go probeLoop(ctx, cache, endpoints, probeInterval, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(cache, endpoints))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", server.Addr).
		Int("endpoints", len(endpoints)).
		Dur("probe_interval", probeInterval).
		Msg("Starting connwatch")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("Server failed")
	}

	// Tear down every cached connection on the way out.
	for _, outcome := range cache.ClearAll(context.Background()) {
		if outcome.Err != nil {
			logger.Warn().Err(outcome.Err).
				Str("endpoint", outcome.Endpoint.String()).
				Msg("Disconnect failed during shutdown")
		}
	}
	logger.Info().Msg("Shutdown complete")
}

// probeLoop keeps every configured endpoint's connection usable, replacing
// connections that stopped responding or started closing.
func probeLoop(ctx context.Context, cache *conncache.Cache, endpoints []conncache.Endpoint, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, endpoint := range endpoints {
			conn, err := cache.GetOrReplaceIfClosing(ctx, endpoint.Host, endpoint.Port)
			if errors.Is(err, conncache.ErrNotCached) {
				conn, err = cache.SetConnection(ctx, conncache.Config{
					"host": endpoint.Host,
					"port": endpoint.Port,
				})
			}
			if err != nil {
				logger.Error().Err(err).Str("endpoint", endpoint.String()).Msg("Connection unavailable")
				continue
			}
			if _, err := cache.ReplaceIfUnusable(ctx, conn, nil); err != nil {
				logger.Error().Err(err).Str("endpoint", endpoint.String()).Msg("Replacement failed")
			}
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready once every configured endpoint has a cached,
// usable connection.
func readyHandler(cache *conncache.Cache, endpoints []conncache.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for _, endpoint := range endpoints {
			conn, err := cache.GetConnection(endpoint.Host, endpoint.Port)
			if err != nil || !cache.IsUsable(ctx, conn) {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "endpoint %s not usable", endpoint)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// parseEndpoints splits a comma-separated list of host:port pairs.
func parseEndpoints(list string) ([]conncache.Endpoint, error) {
	var endpoints []conncache.Endpoint
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		host, portStr, ok := strings.Cut(raw, ":")
		if !ok || host == "" {
			return nil, fmt.Errorf("endpoint %q: want host:port", raw)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return nil, fmt.Errorf("endpoint %q: invalid port", raw)
		}
		endpoints = append(endpoints, conncache.Endpoint{Host: host, Port: port})
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}
	return endpoints, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
