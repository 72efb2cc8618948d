// Package request provides helpers for describing inbound HTTP requests in
// access logs, including when ssfs runs behind a reverse proxy.
package request

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating client address for the request. It
// checks Forwarded (RFC 7239), X-Forwarded-For and X-Real-IP before falling
// back to the peer address of the connection.
func ClientIP(r *http.Request) string {
	// Forwarded: for=192.0.2.60;proto=https, for="[2001:db8::1]:4711"
	if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
		first := strings.Split(forwarded, ",")[0]
		for _, part := range strings.Split(first, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				if ip := stripPort(strings.Trim(part[4:], `"`)); ip != "" {
					return ip
				}
				break
			}
		}
	}
	// X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return stripPort(r.RemoteAddr)
}

// PeerIP returns the address of the directly connected peer, ignoring any
// forwarding headers. Use it where a spoofed header must not matter.
func PeerIP(r *http.Request) string {
	return stripPort(r.RemoteAddr)
}

// Line returns the HTTP request line, e.g. "GET /index.html HTTP/2.0".
func Line(r *http.Request) string {
	uri := r.RequestURI
	if uri == "" && r.URL != nil {
		uri = r.URL.RequestURI()
	}
	return r.Method + " " + uri + " " + r.Proto
}

// stripPort removes an optional port and IPv6 brackets from addr.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
