package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	authcore "github.com/MrTornister/Work-Flow-app"
)

type clientIPContextKey struct{}

// ProxyTrust lists the reverse proxies whose X-Forwarded-For and X-Real-IP
// headers are believed. A nil *ProxyTrust trusts nobody.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// TrustProxies parses CIDRs or bare addresses, e.g. "10.0.0.0/8" or
// "127.0.0.1".
func TrustProxies(entries ...string) (*ProxyTrust, error) {
	p := &ProxyTrust{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			addr = addr.Unmap()
			p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		p.prefixes = append(p.prefixes, prefix.Masked())
	}
	return p, nil
}

func (p *ProxyTrust) trusts(addr netip.Addr) bool {
	if p == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP resolves the caller's address. Forwarding headers count only when
// the socket peer is trusted; X-Forwarded-For is then read right to left and
// the first hop that is not itself a trusted proxy wins.
func (p *ProxyTrust) ClientIP(r *http.Request) string {
	peer := peerHost(r)
	if !p.trusts(parseAddr(peer)) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := parseAddr(strings.TrimSpace(hops[i]))
			if !hop.IsValid() {
				return peer
			}
			if !p.trusts(hop) || i == 0 {
				return hop.String()
			}
		}
	}
	if ip := parseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip.IsValid() {
		return ip.String()
	}
	return peer
}

// RealIP resolves the client address once through trust and stores it for
// [ClientIP]. Mount it outermost so that the access log and the rate gate
// agree on who is calling.
func RealIP(trust *ProxyTrust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPContextKey{}, trust.ClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address stored by [RealIP], else the host part of
// RemoteAddr. Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey{}).(string); ok && ip != "" {
		return ip
	}
	return peerHost(r)
}

func withClientIP(r *http.Request) context.Context {
	return authcore.WithClientIP(r.Context(), ClientIP(r))
}

func peerHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseAddr(s string) netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}
