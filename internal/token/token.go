// Package token issues and tracks the opaque page tokens embedded in the
// login forms and carousel image URLs.
package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Prefix matches the portal's own token format ("MOJ" followed by a UUID).
const Prefix = "MOJ"

var ErrEmptyToken = errors.New("empty token")

// Source hands out a token for a new page view.
type Source interface {
	Token(ctx context.Context) (string, error)
}

var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mojtvz",
			Name:      "tokens_issued_total",
			Help:      "Page tokens handed out, by origin",
		}, []string{"origin"})

	tokensCached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mojtvz",
			Name:      "tokens_cached",
			Help:      "The amount of live page tokens",
		})
)

func init() {
	prometheus.MustRegister(tokensIssued)
	prometheus.MustRegister(tokensCached)
}

// Store remembers tokens for ttl after they were issued or last remembered.
type Store struct {
	c *cache.Cache
}

func NewStore(ttl time.Duration) *Store {
	cleanup := ttl * 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	s := &Store{c: cache.New(ttl, cleanup)}
	s.c.OnEvicted(func(string, interface{}) {
		tokensCached.Set(float64(s.c.ItemCount()))
	})
	return s
}

// Issue creates and remembers a fresh token.
func (s *Store) Issue() string {
	tok := Prefix + uuid.NewString()
	s.c.Set(tok, time.Now(), cache.DefaultExpiration)
	tokensIssued.WithLabelValues("local").Inc()
	tokensCached.Set(float64(s.c.ItemCount()))
	return tok
}

// Remember marks a token obtained elsewhere as valid.
func (s *Store) Remember(tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ErrEmptyToken
	}
	s.c.Set(tok, time.Now(), cache.DefaultExpiration)
	tokensCached.Set(float64(s.c.ItemCount()))
	return nil
}

// Valid reports whether tok is known and not expired.
func (s *Store) Valid(tok string) bool {
	if tok == "" {
		return false
	}
	_, found := s.c.Get(tok)
	return found
}

// Expires returns when tok stops being valid.
func (s *Store) Expires(tok string) (time.Time, bool) {
	_, exp, found := s.c.GetWithExpiration(tok)
	return exp, found
}

func (s *Store) Forget(tok string) {
	s.c.Delete(tok)
}

// Token implements Source by issuing a local token.
func (s *Store) Token(_ context.Context) (string, error) {
	return s.Issue(), nil
}

// CountUpstream records a token that came from the upstream portal.
func CountUpstream() {
	tokensIssued.WithLabelValues("upstream").Inc()
}
