// Package limiter throttles form submissions forwarded to the portal, with
// one token bucket per client IP.
package limiter

import (
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"mojtvz/internal/clientip"
)

// Buckets idle for this long are dropped.
const bucketExpiry = 30 * time.Minute

var rejected = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "mojtvz",
		Name:      "limiter_rejected_total",
		Help:      "Form submissions rejected by the rate limiter",
	})

func init() {
	prometheus.MustRegister(rejected)
}

type Limiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache
}

func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: cache.New(bucketExpiry, bucketExpiry/2),
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if v, found := l.buckets.Get(key); found {
		b := v.(*rate.Limiter)
		l.buckets.Set(key, b, cache.DefaultExpiration)
		return b
	}
	b := rate.NewLimiter(l.limit, l.burst)
	// Add fails if another request created the bucket first.
	if err := l.buckets.Add(key, b, cache.DefaultExpiration); err != nil {
		if v, found := l.buckets.Get(key); found {
			return v.(*rate.Limiter)
		}
	}
	return b
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Middleware rejects requests over the limit with 429. The key is the client
// IP stored by clientip.EnrichContext.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromContext(r.Context())
		if ip == "" {
			ip = r.RemoteAddr
		}
		if !l.Allow(ip) {
			rejected.Inc()
			log.Warn().Str("client_ip", ip).Str("path", r.URL.Path).Msg("submission rate limited")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
