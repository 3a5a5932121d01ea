package middleware

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies holds the parsed TRUSTED_PROXY_CIDRS. Forwarding headers are
// only believed when the direct peer is inside one of these networks.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies parses CIDRs; invalid entries are skipped.
func ParseTrustedProxies(cidrs []string) TrustedProxies {
	out := make(TrustedProxies, 0, len(cidrs))
	for _, raw := range cidrs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		out = append(out, network)
	}
	return out
}

func (t TrustedProxies) contains(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range t {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func peerIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// forwarded reports whether r's direct peer is a trusted proxy.
func (t TrustedProxies) forwarded(r *http.Request) bool {
	return len(t) > 0 && t.contains(peerIP(r))
}

// ClientIP returns the caller's address, using X-Forwarded-For or X-Real-IP
// only when the request arrived through a trusted proxy.
func ClientIP(r *http.Request, trusted TrustedProxies) string {
	if r == nil {
		return ""
	}

	remoteIP := peerIP(r)
	if trusted.forwarded(r) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	return remoteIP
}
