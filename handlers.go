package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"mojtvz/internal/clientip"
	"mojtvz/internal/loginpage"
	"mojtvz/internal/session"

	servertiming "github.com/mitchellh/go-server-timing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const (
	cacheControlValue = "no-store, no-cache, must-revalidate, max-age=0"
	pragmaValue       = "no-cache"
	expiresValue      = "0"
)

var (
	pageRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mojtvz",
			Name:      "login_page_renders_total",
			Help:      "Login page renders by outcome",
		}, []string{"outcome"})

	forwardedSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mojtvz",
			Name:      "forwarded_submissions_total",
			Help:      "Form submissions forwarded to the portal, by form",
		}, []string{"form"})
)

func init() {
	prometheus.MustRegister(pageRenders)
	prometheus.MustRegister(forwardedSubmissions)
}

func setNoCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", cacheControlValue)
	w.Header().Set("Pragma", pragmaValue)
	w.Header().Set("Expires", expiresValue)
}

// pageToken returns the token for this browser session. A token the caller
// already holds (requested) is reused while it is still valid.
func (a *app) pageToken(ctx context.Context, requested string) (session.PageToken, error) {
	current, hasCurrent := a.sessions.PageToken(ctx)
	if requested != "" && a.tokens.Valid(requested) {
		if hasCurrent && current.Value == requested {
			return current, nil
		}
		return a.sessions.SetPageToken(ctx, session.PageToken{Value: requested}), nil
	}
	if hasCurrent && a.tokens.Valid(current.Value) {
		return current, nil
	}

	pt, err := a.issuePageToken(ctx)
	if err != nil {
		return session.PageToken{}, fmt.Errorf("obtain page token: %w", err)
	}
	if err := a.tokens.Remember(pt.Value); err != nil {
		return session.PageToken{}, err
	}
	return a.sessions.SetPageToken(ctx, pt), nil
}

// issuePageToken asks the upstream portal for a token when configured, so the
// portal session cookies can be handed to the browser with it.
func (a *app) issuePageToken(ctx context.Context) (session.PageToken, error) {
	if a.portal == nil {
		tok, err := a.source.Token(ctx)
		if err != nil {
			return session.PageToken{}, err
		}
		return session.PageToken{Value: tok}, nil
	}

	login, err := a.portal.Login(ctx)
	if err != nil {
		return session.PageToken{}, err
	}
	pt := session.PageToken{Value: login.Token}
	for _, c := range login.Cookies {
		pt.Cookies = append(pt.Cookies, session.Cookie{Name: c.Name, Value: c.Value})
	}
	return pt, nil
}

func (a *app) page(ctx context.Context, requested string) (loginpage.Page, session.PageToken, error) {
	pt, err := a.pageToken(ctx, requested)
	if err != nil {
		return loginpage.Page{}, session.PageToken{}, err
	}
	page, err := loginpage.NewPage(pt.Value, a.slides, a.links)
	return page, pt, err
}

// portalCookies are the upstream session cookies as set on this host, so the
// browser sends them back with the forwarded form submissions.
func (a *app) portalCookies(pt session.PageToken) []http.Cookie {
	cookies := make([]http.Cookie, 0, len(pt.Cookies))
	for _, c := range pt.Cookies {
		cookies = append(cookies, http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     "/",
			HttpOnly: true,
			Secure:   a.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return cookies
}

func (a *app) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get(loginpage.LinkParam) != "" {
		// image retrieval and other portal resources
		a.upstream.ServeHTTP(w, r)
		return
	}

	page, pt, err := a.page(r.Context(), query.Get(loginpage.TokenField))
	if err != nil {
		log.Error().Err(err).Str("client_ip", clientip.FromContext(r.Context())).Msg("login page unavailable")
		pageRenders.WithLabelValues("token_error").Inc()
		serveUnavailable(w, "Prijava trenutno nije dostupna. Pokušajte ponovno kasnije.")
		return
	}

	var metric *servertiming.Metric
	if timing := servertiming.FromContext(r.Context()); timing != nil {
		metric = timing.NewMetric("render").Start()
	}
	var buf bytes.Buffer
	err = a.renderer.Render(&buf, page)
	if metric != nil {
		metric.Stop()
	}
	if err != nil {
		log.Error().Err(err).Msg("render login page")
		pageRenders.WithLabelValues("render_error").Inc()
		http.Error(w, "Login page unavailable.", http.StatusInternalServerError)
		return
	}

	for _, c := range a.portalCookies(pt) {
		http.SetCookie(w, &c)
	}
	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Warn().Err(err).Msg("write login page")
		return
	}
	pageRenders.WithLabelValues("ok").Inc()
}

// submissionForm tells the two login forms apart without reading the body:
// only the guest form posts with the token and a resource in the query.
func submissionForm(r *http.Request) string {
	q := r.URL.Query()
	if q.Get(loginpage.TokenField) != "" && q.Get(loginpage.LinkParam) != "" {
		return "guest"
	}
	return "sso"
}

func (a *app) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form := submissionForm(r)
	forwardedSubmissions.WithLabelValues(form).Inc()
	log.Info().
		Str("form", form).
		Str("client_ip", clientip.FromContext(r.Context())).
		Str("content_type", r.Header.Get("Content-Type")).
		Msg("forwarding login submission")
	a.upstream.ServeHTTP(w, r)
}

// newUpstreamProxy forwards requests unchanged to the portal backend, which
// owns authentication.
func newUpstreamProxy(upstream *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = upstream.Host
	}
	proxy.ModifyResponse = func(resp *http.Response) error {
		hostOnlyCookies(resp.Header)
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("upstream", upstream.Host).Str("path", r.URL.Path).Msg("portal request failed")
		http.Error(w, "portal unavailable", http.StatusBadGateway)
	}
	return proxy
}

// hostOnlyCookies drops the Domain attribute of upstream cookies so browsers
// keep them for this host.
func hostOnlyCookies(h http.Header) {
	cookies := (&http.Response{Header: h}).Cookies()
	if len(cookies) == 0 {
		return
	}
	h.Del("Set-Cookie")
	for _, c := range cookies {
		c.Domain = ""
		if v := c.String(); v != "" {
			h.Add("Set-Cookie", v)
		}
	}
}
