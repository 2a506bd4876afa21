package conncache

import (
	"net"
	"strconv"
)

// Endpoint identifies one server as a (host, port) pair. It is comparable
// and is used directly as the cache map key, so two lookups for the same
// host and port always address the same cache entry.
type Endpoint struct {
	Host string
	Port int
}

// String renders the endpoint as "host:port" (IPv6 hosts are bracketed).
// Used for log fields and error messages.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// endpointOrDefault fills missing host/port with the adapter defaults.
func (c *Cache) endpointOrDefault(host string, port int) Endpoint {
	if host == "" {
		host = c.adapter.DefaultHost()
	}
	if port == 0 {
		port = c.adapter.DefaultPort()
	}
	return Endpoint{Host: host, Port: port}
}
