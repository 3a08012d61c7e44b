// Package hostcanon canonicalizes an inbound Host header into the form used
// as a token audience and as a host→site binding key: the registrable
// domain for public hostnames, left literal for loopback and RFC1918
// addresses (where there is no meaningful "registrable domain").
package hostcanon

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Canonicalize strips a port suffix and reduces a public hostname to its
// registrable domain (e.g. "app.chunk.example.com" -> "example.com").
// RFC1918, loopback, and otherwise unparseable/IP hosts are returned as-is.
func Canonicalize(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if ip := net.ParseIP(host); ip != nil {
		return host
	}
	if isPrivateHostname(host) {
		return host
	}

	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	// Not a recognized public suffix (e.g. a bare single-label dev host like
	// "localhost" or an internal service name): keep it literal.
	return host
}

// isPrivateHostname keeps loopback- and RFC1918-style literal hostnames
// (as opposed to dotted-decimal IPs, handled separately above) unchanged:
// "localhost" and anything ending in ".local" or ".internal".
func isPrivateHostname(host string) bool {
	switch {
	case host == "localhost":
		return true
	case strings.HasSuffix(host, ".local"):
		return true
	case strings.HasSuffix(host, ".internal"):
		return true
	default:
		return false
	}
}
