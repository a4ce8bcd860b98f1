package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mojtvz/internal/clientip"
	"mojtvz/internal/config"
	"mojtvz/internal/gallery"
	"mojtvz/internal/limiter"
	"mojtvz/internal/loginpage"
	"mojtvz/internal/portal"
	"mojtvz/internal/session"
	"mojtvz/internal/token"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	servertiming "github.com/mitchellh/go-server-timing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	readHeaderTimeout = 15 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownDeadline  = 5 * time.Second
	upstreamTimeout   = 10 * time.Second
)

/*
   ---------------------------
   Application wiring
   ---------------------------
*/

type app struct {
	settings      *config.SettingsType
	sessions      *session.Manager
	secureCookies bool
	tokens        *token.Store
	source        token.Source
	portal        *portal.Client
	renderer      *loginpage.Renderer
	slides        []loginpage.Slide
	links         loginpage.Links
	upstream      http.Handler
	limiter       *limiter.Limiter
	clientIPs     *clientip.Resolver
}

func newApp(settings *config.SettingsType) (*app, error) {
	upstreamURL, err := parseUpstream(settings.Get(config.PORTAL_UPSTREAM))
	if err != nil {
		return nil, err
	}

	slides, err := gallery.Load(settings.Get(config.SLIDES_FILE))
	if err != nil {
		return nil, err
	}

	renderer, err := loginpage.New(loginpage.Options{
		Title: settings.Get(config.PAGE_TITLE),
		Assets: loginpage.Assets{
			BootstrapCSS: settings.Get(config.ASSET_BOOTSTRAP_CSS),
			IconsCSS:     settings.Get(config.ASSET_ICONS_CSS),
			JQuery:       settings.Get(config.ASSET_JQUERY),
			BootstrapJS:  settings.Get(config.ASSET_BOOTSTRAP_JS),
			Stylesheet:   "/static/css/mojtvz.css",
			Favicon:      "/static/favicon.svg",
		},
	})
	if err != nil {
		return nil, err
	}

	clientIPs, err := clientip.NewResolver(settings.Get(config.TRUSTED_PROXIES))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.TRUSTED_PROXIES, err)
	}

	secure := settings.IsTrue(config.SESSION_COOKIE_SECURE)
	a := &app{
		settings:      settings,
		sessions:      session.NewManager(secure),
		secureCookies: secure,
		tokens:        token.NewStore(settings.GetDuration(config.TOKEN_TTL, 30*time.Minute)),
		renderer:      renderer,
		slides:        slides,
		clientIPs:     clientIPs,
		links: loginpage.Links{
			ImageEndpoint: settings.Get(config.IMAGE_ENDPOINT),
			GuestPath:     settings.Get(config.GUEST_PATH),
			GuestResource: settings.Get(config.GUEST_RESOURCE),
		},
		upstream: newUpstreamProxy(upstreamURL),
	}

	switch src := settings.Get(config.TOKEN_SOURCE); src {
	case config.TokenSourceLocal, "":
		a.source = a.tokens
	case config.TokenSourceUpstream:
		client, err := portal.NewClient(upstreamURL.String(), upstreamTimeout)
		if err != nil {
			return nil, err
		}
		a.source = client
		a.portal = client
	default:
		return nil, fmt.Errorf("unknown %s %q", config.TOKEN_SOURCE, src)
	}

	if settings.IsTrue(config.LIMITER_ENABLED) {
		a.limiter = limiter.New(
			settings.GetFloat(config.LIMITER_RATE, 1),
			settings.GetInt(config.LIMITER_BURST, 10),
		)
	}
	return a, nil
}

// parseUpstream accepts only absolute portal URLs.
func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s %q", config.PORTAL_UPSTREAM, raw)
	}
	return u, nil
}

/*
   ---------------------------
   Request logging
   ---------------------------
*/

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("responsewriter does not support hijacking")
	}
	return h.Hijack()
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if strings.HasPrefix(r.URL.Path, "/static/") {
			return
		}
		log.Info().
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("dur", time.Since(start).Truncate(time.Millisecond)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Str("client_ip", clientip.FromContext(r.Context())).
			Str("ua", r.UserAgent()).
			Msg("request")
	})
}

/*
   ---------------------------
   Router
   ---------------------------
*/

func getLoginPortalRouter(a *app) http.Handler {
	router := chi.NewRouter()
	router.Use(a.sessions.LoadAndSave)

	router.Handle("/static/*", http.FileServer(http.FS(staticFiles)))

	router.Get("/", a.handleLoginGet)
	router.Get("/index.php", a.handleLoginGet)

	var submit http.Handler = http.HandlerFunc(a.handleSubmit)
	if a.limiter != nil {
		submit = a.limiter.Middleware(submit)
	}
	router.Method(http.MethodPost, "/", submit)
	router.Method(http.MethodPost, "/index.php", submit)

	router.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			log.Error().Err(err).Msg("failed to write health response")
		}
	})
	router.Handle("/metrics", promhttp.Handler())

	apiCfg := huma.DefaultConfig("moj.tvz.hr login portal", "1.0.0")
	apiCfg.OpenAPIPath = ""
	apiCfg.DocsPath = ""
	apiCfg.SchemasPath = ""
	api := humachi.New(router, apiCfg)
	registerAPI(api, a)

	var handler http.Handler = router
	handler = servertiming.Middleware(handler, nil)
	handler = logRequests(handler)
	handler = a.clientIPs.EnrichContext(handler)
	return handler
}

/*
   ---------------------------
   Main
   ---------------------------
*/

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	settings := config.NewSettingType(true)
	config.SetupLogger(settings)

	if err := run(settings); err != nil {
		log.Fatal().Err(err).Msg("login portal failed")
	}
}

func run(settings *config.SettingsType) error {
	a, err := newApp(settings)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	srv := &http.Server{
		Addr:              settings.Get(config.LISTEN_ADDR),
		Handler:           getLoginPortalRouter(a),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if settings.IsTrue(config.TLS_ENABLED) {
			certPath := settings.Get(config.TLS_CERT)
			keyPath := settings.Get(config.TLS_KEY)
			if err := ensureTLSCert(certPath, keyPath); err != nil {
				serverErrors <- fmt.Errorf("failed to ensure TLS certs: %w", err)
				return
			}
			srv.TLSConfig = serverTLSConfig()
			log.Info().Str("addr", srv.Addr).Str("token_source", settings.Get(config.TOKEN_SOURCE)).Msg("starting login portal (https)")
			serverErrors <- srv.ListenAndServeTLS(certPath, keyPath)
			return
		}
		log.Info().Str("addr", srv.Addr).Str("token_source", settings.Get(config.TOKEN_SOURCE)).Msg("starting login portal")
		serverErrors <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case s := <-quit:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
	}
	return nil
}
