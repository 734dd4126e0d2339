package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver reads X-Forwarded-For and X-Real-IP only when the
// direct peer is one of the trusted proxies. A nil resolver trusts none.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

func NewClientIPResolver(trusted []netip.Prefix) *ClientIPResolver {
	return &ClientIPResolver{trusted: trusted}
}

func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}

	// Walk the chain from the nearest hop; the first untrusted entry is
	// the client.
	hops := forwardedHops(r)
	for i := len(hops) - 1; i >= 0; i-- {
		if !c.isTrusted(hops[i]) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(ip) {
		return ip
	}
	return peer
}

func (c *ClientIPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); validIP(ip) {
				hops = append(hops, ip)
			}
		}
	}
	return hops
}

func validIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
