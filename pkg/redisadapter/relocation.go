package redisadapter

import (
	"net"
	"strconv"
	"strings"
)

// Relocation kinds reported by redis cluster nodes.
const (
	RelocationMoved = "MOVED"
	RelocationAsk   = "ASK"
)

// RelocationError is a parsed MOVED or ASK reply from a redis cluster node.
// It indicates the addressed hash slot now lives at a different endpoint and
// the caller should retry there.
type RelocationError struct {
	Kind string // RelocationMoved or RelocationAsk
	Slot int
	Host string
	Port int
	raw  error
}

// Error implements the error interface.
func (e *RelocationError) Error() string {
	return e.raw.Error()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RelocationError) Unwrap() error {
	return e.raw
}

// parseRelocation recognizes "MOVED <slot> <host>:<port>" and
// "ASK <slot> <host>:<port>" replies per the redis cluster specification.
// Anything else, including nil, parses as not-a-relocation.
func parseRelocation(err error) (*RelocationError, bool) {
	if err == nil {
		return nil, false
	}

	msg := err.Error()
	var kind string
	switch {
	case strings.HasPrefix(msg, RelocationMoved+" "):
		kind = RelocationMoved
	case strings.HasPrefix(msg, RelocationAsk+" "):
		kind = RelocationAsk
	default:
		return nil, false
	}

	fields := strings.Fields(msg)
	if len(fields) != 3 {
		return nil, false
	}

	slot, convErr := strconv.Atoi(fields[1])
	if convErr != nil {
		return nil, false
	}

	host, portStr, splitErr := net.SplitHostPort(fields[2])
	if splitErr != nil || host == "" {
		return nil, false
	}
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil || port <= 0 {
		return nil, false
	}

	return &RelocationError{
		Kind: kind,
		Slot: slot,
		Host: host,
		Port: port,
		raw:  err,
	}, true
}
