package conncache

import (
	"reflect"
	"strconv"
)

// Well-known configuration keys. Every configuration handed to the cache
// fully specifies its endpoint under these keys after defaulting.
const (
	KeyHost = "host"
	KeyPort = "port"
)

// Config is an opaque, caller-supplied mapping of connection construction
// options. The cache never interprets options beyond host and port; adapters
// interpret the rest. The cache stores a deep copy taken at connection
// creation time, so later caller mutation of the original map cannot affect
// cached state.
type Config map[string]any

// Clone returns a deep copy of the configuration. Nested maps and slices
// are copied recursively; other values are copied as-is. A nil Config
// clones to an empty, non-nil one.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	// Types are preserved so a clone stays deep-equal to its source.
	switch v := v.(type) {
	case Config:
		return v.Clone()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}

// Equal reports strict deep equality between two configurations. Map
// iteration order plays no role; values must match in both type and value.
func (c Config) Equal(other Config) bool {
	if len(c) == 0 && len(other) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(c), map[string]any(other))
}

// EndpointOnly reports whether the configuration carries nothing beyond
// host and port. Such a configuration expresses "the connection for this
// endpoint, whatever its options" and never forces a replacement.
func (c Config) EndpointOnly() bool {
	for k := range c {
		if k != KeyHost && k != KeyPort {
			return false
		}
	}
	return true
}

// Host returns the configured host, if present as a non-empty string.
func (c Config) Host() (string, bool) {
	h, ok := c[KeyHost].(string)
	if !ok || h == "" {
		return "", false
	}
	return h, true
}

// Port returns the configured port. Numeric types and decimal strings are
// accepted; anything else reads as absent.
func (c Config) Port() (int, bool) {
	switch p := c[KeyPort].(type) {
	case int:
		return p, p != 0
	case int32:
		return int(p), p != 0
	case int64:
		return int(p), p != 0
	case float64:
		return int(p), p != 0
	case string:
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		return n, n != 0
	default:
		return 0, false
	}
}
