package clientip

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type contextKey string

const clientIPKey contextKey = "ClientIP"

// Resolver picks the client address of a request. X-Forwarded-For is only
// read when the connecting peer is one of the trusted proxies.
type Resolver struct {
	trusted []*net.IPNet
}

// NewResolver parses a comma-separated list of proxy IPs and CIDRs. An empty
// list trusts no proxy.
func NewResolver(proxies string) (*Resolver, error) {
	r := &Resolver{}
	for _, entry := range strings.Split(proxies, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			r.trusted = append(r.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, subnet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		r.trusted = append(r.trusted, subnet)
	}
	return r, nil
}

func (r *Resolver) trusts(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range r.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP walks X-Forwarded-For from the right and returns the first hop
// not added by a trusted proxy. Untrusted peers get their own address.
func (r *Resolver) ClientIP(req *http.Request) string {
	client := hostOnly(req.RemoteAddr)
	if !r.trusts(client) {
		if req.Header.Get("X-Forwarded-For") != "" {
			log.Debug().Str("remote_ip", client).Msg("ignoring X-Forwarded-For from untrusted peer")
		}
		return client
	}

	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			break
		}
		if !r.trusts(hop) {
			return hop
		}
		client = hop
	}
	return client
}

// EnrichContext stores the resolved client address in every request context.
func (r *Resolver) EnrichContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.WithValue(req.Context(), clientIPKey, r.ClientIP(req))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// EnrichContext stores the peer address of every request, trusting no proxy.
func EnrichContext(next http.Handler) http.Handler {
	return (&Resolver{}).EnrichContext(next)
}

func FromContext(ctx context.Context) string {
	s, ok := ctx.Value(clientIPKey).(string)
	if !ok {
		return ""
	}
	return s
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
