package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// clientIP resolves the caller's address. X-Forwarded-For is honored
// only when the direct peer is inside one of the trusted proxy ranges;
// the ranges are matched with real prefix arithmetic, so 10.1.0.0/16
// trusts 10.1.2.3 and not 101.2.3.4. Without a usable source the
// sentinel "unknown" keeps rate-limit keys well formed.
func clientIP(r *http.Request, trustedProxies []netip.Prefix) string {
	peer := remoteIP(r)

	if peer.IsValid() && len(trustedProxies) > 0 && prefixesContain(trustedProxies, peer) {
		if forwarded := forwardedClient(r.Header.Get("X-Forwarded-For")); forwarded != "" {
			return forwarded
		}
	}

	if peer.IsValid() {
		return peer.String()
	}
	return "unknown"
}

func remoteIP(r *http.Request) netip.Addr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// forwardedClient picks the first parseable entry of X-Forwarded-For,
// which is the address the outermost trusted proxy saw.
func forwardedClient(header string) string {
	for _, part := range strings.Split(header, ",") {
		candidate := strings.TrimSpace(part)
		if addr, err := netip.ParseAddr(candidate); err == nil {
			return addr.Unmap().String()
		}
	}
	return ""
}

func prefixesContain(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies parses CIDR strings into prefixes. Bare addresses
// are accepted as single-host ranges.
func ParseTrustedProxies(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if !strings.Contains(cidr, "/") {
			addr, err := netip.ParseAddr(cidr)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix)
	}
	return out, nil
}
