// Package redisadapter implements the conncache collaborator contracts on
// top of go-redis. It supplies connection construction, endpoint defaults,
// a static table of named operations, and MOVED/ASK relocation parsing per
// the redis cluster specification.
package redisadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/conncache/pkg/conncache"
)

// Configuration keys the adapter understands beyond host and port. All are
// optional.
const (
	KeyUsername = "username"
	KeyPassword = "password"
	KeyDB       = "db"
)

// Config holds the adapter configuration.
type Config struct {
	// DefaultHost fills in a missing host in connection configurations.
	DefaultHost string

	// DefaultPort fills in a missing port in connection configurations.
	DefaultPort int

	// DialTimeout bounds transport establishment per attempt.
	DialTimeout time.Duration

	// ReadTimeout bounds individual command round-trips.
	ReadTimeout time.Duration
}

// DefaultConfig returns a safe default adapter configuration.
func DefaultConfig() Config {
	return Config{
		DefaultHost: "localhost",
		DefaultPort: 6379,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
	}
}

// Adapter constructs redis-backed connections for the cache.
type Adapter struct {
	config Config
	logger zerolog.Logger
}

// New creates a redis adapter.
func New(cfg Config, logger zerolog.Logger) *Adapter {
	if cfg.DefaultHost == "" {
		cfg.DefaultHost = "localhost"
	}
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = 6379
	}
	return &Adapter{
		config: cfg,
		logger: logger.With().Str("component", "redisadapter").Logger(),
	}
}

// DefaultHost returns the host used when a configuration omits one.
func (a *Adapter) DefaultHost() string {
	return a.config.DefaultHost
}

// DefaultPort returns the port used when a configuration omits one.
func (a *Adapter) DefaultPort() int {
	return a.config.DefaultPort
}

// CreateConnection builds a connection handle from cfg. go-redis dials
// lazily, so the handle returns immediately; transient connect failures
// surface through the usability probe or operation errors, never here.
// Only a malformed configuration produces an error.
func (a *Adapter) CreateConnection(ctx context.Context, cfg conncache.Config) (conncache.Conn, error) {
	host, ok := cfg.Host()
	if !ok {
		host = a.config.DefaultHost
	}
	port, ok := cfg.Port()
	if !ok {
		port = a.config.DefaultPort
	}
	endpoint := conncache.Endpoint{Host: host, Port: port}

	opts := &redis.Options{
		Addr:        endpoint.String(),
		DialTimeout: a.config.DialTimeout,
		ReadTimeout: a.config.ReadTimeout,
	}
	if username, ok := cfg[KeyUsername]; ok {
		s, ok := username.(string)
		if !ok {
			return nil, fmt.Errorf("config %q: expected string, got %T", KeyUsername, username)
		}
		opts.Username = s
	}
	if password, ok := cfg[KeyPassword]; ok {
		s, ok := password.(string)
		if !ok {
			return nil, fmt.Errorf("config %q: expected string, got %T", KeyPassword, password)
		}
		opts.Password = s
	}
	if db, ok := cfg[KeyDB]; ok {
		n, ok := toInt(db)
		if !ok {
			return nil, fmt.Errorf("config %q: expected integer, got %T", KeyDB, db)
		}
		opts.DB = n
	}

	conn := newConn(endpoint, cfg.Clone(), a.logger)
	opts.OnConnect = func(ctx context.Context, _ *redis.Conn) error {
		conn.fireConnected()
		return nil
	}
	conn.client = redis.NewClient(opts)

	a.logger.Debug().
		Str("endpoint", endpoint.String()).
		Msg("Redis connection handle constructed")
	return conn, nil
}

// IsRelocation reports whether err is a MOVED or ASK cluster reply.
func (a *Adapter) IsRelocation(err error) bool {
	_, ok := parseRelocation(err)
	return ok
}

// RelocationTarget extracts the endpoint a MOVED or ASK reply points to.
func (a *Adapter) RelocationTarget(err error) (string, int, bool) {
	rel, ok := parseRelocation(err)
	if !ok {
		return "", 0, false
	}
	return rel.Host, rel.Port, true
}

func toInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
