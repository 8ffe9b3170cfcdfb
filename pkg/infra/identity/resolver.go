package identity

import (
	"net"
	"strings"
)

const (
	// UnknownIdentifier is the sentinel used when no address can be
	// resolved at all. Per-identifier state keyed on it is shared by all
	// such requests, which is why the behavior analyzer carves it out in
	// development mode.
	UnknownIdentifier = "unknown"

	countryHeader = "CF-IPCountry"
)

// Resolver derives a stable client identifier from transport data.
//
// The header chain assumes exactly one trusted front-door proxy (a CDN or
// reverse proxy) rewriting these headers. Requests that reach the
// listener directly can spoof any of them; closing that hole is a
// deployment concern, not handled here.
type Resolver struct {
	trustedHeaders []string
}

func NewResolver(trustedHeaders []string) *Resolver {
	if len(trustedHeaders) == 0 {
		trustedHeaders = []string{"CF-Connecting-IP", "True-Client-IP", "X-Forwarded-For"}
	}
	return &Resolver{trustedHeaders: trustedHeaders}
}

// Resolve returns (identifier, country). Priority: trusted proxy headers
// in configured order (first hop of a comma-separated chain), then the
// raw socket address, then the "unknown" sentinel. Pure function, no
// side effects.
func (r *Resolver) Resolve(remoteAddr string, headers map[string][]string) (string, string) {
	country := firstHeader(headers, countryHeader)

	for _, header := range r.trustedHeaders {
		value := firstHeader(headers, header)
		if value == "" {
			continue
		}
		hops := strings.Split(value, ",")
		candidate := strings.TrimSpace(hops[0])
		if net.ParseIP(candidate) != nil {
			return candidate, country
		}
	}

	addr := strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if net.ParseIP(addr) != nil {
		return addr, country
	}

	return UnknownIdentifier, country
}

func firstHeader(headers map[string][]string, key string) string {
	if values, ok := headers[key]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	// Header maps built from fasthttp keep canonical case, but be
	// tolerant of lowercase keys from tests and other transports.
	if values, ok := headers[strings.ToLower(key)]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
