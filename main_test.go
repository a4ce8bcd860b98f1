package main

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSubmissionForm(t *testing.T) {
	cases := []struct {
		target string
		want   string
	}{
		{"/", "sso"},
		{"/index.php", "sso"},
		{"/index.php?TVZ=ABC123", "sso"},
		{"/index.php?link=skini/repoz/18416/111937", "sso"},
		{"/index.php?TVZ=ABC123&link=skini/repoz/18416/111937", "guest"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "http://example.com"+tc.target, nil)
		if got := submissionForm(req); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.target, tc.want, got)
		}
	}
}

func TestSetNoCacheHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	setNoCacheHeaders(rec)

	if got := rec.Header().Get("Cache-Control"); got != cacheControlValue {
		t.Fatalf("unexpected Cache-Control %q", got)
	}
	if got := rec.Header().Get("Pragma"); got != "no-cache" {
		t.Fatalf("unexpected Pragma %q", got)
	}
	if got := rec.Header().Get("Expires"); got != "0" {
		t.Fatalf("unexpected Expires %q", got)
	}
}

func TestServeUnavailableEscapesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	serveUnavailable(rec, `<script>alert("x")</script>`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected Retry-After header")
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Fatalf("message was not escaped:\n%s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Fatalf("expected escaped message, got:\n%s", body)
	}
}

func TestUpstreamProxyBadGateway(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	u := down.URL
	down.Close()

	upstream, err := parseUpstream(u)
	if err != nil {
		t.Fatalf("parse upstream: %v", err)
	}
	rec := httptest.NewRecorder()
	newUpstreamProxy(upstream).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://example.com/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestEnsureTLSCertGeneratesPair(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "server.crt")
	keyPath := filepath.Join(dir, "certs", "server.key")

	if err := ensureTLSCert(certPath, keyPath); err != nil {
		t.Fatalf("ensureTLSCert: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Fatalf("generated pair does not load: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected key mode 0600, got %o", perm)
	}

	before, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("read cert: %v", err)
	}
	if err := ensureTLSCert(certPath, keyPath); err != nil {
		t.Fatalf("second ensureTLSCert: %v", err)
	}
	after, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("read cert: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("existing certificate was regenerated")
	}
}

func TestEnsureTLSCertRegeneratesMissingKey(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")

	if err := os.WriteFile(certPath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale cert: %v", err)
	}
	if err := ensureTLSCert(certPath, keyPath); err != nil {
		t.Fatalf("ensureTLSCert: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Fatalf("regenerated pair does not load: %v", err)
	}
}

func TestHostOnlyCookies(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "PHPSESSID=abc; Path=/; Domain=moj.tvz.hr; HttpOnly")
	h.Add("Set-Cookie", "lang=hr; Path=/")

	hostOnlyCookies(h)

	values := h.Values("Set-Cookie")
	if len(values) != 2 {
		t.Fatalf("expected 2 cookies, got %v", values)
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), "domain=") {
			t.Fatalf("expected host-only cookie, got %q", v)
		}
	}
	if !strings.HasPrefix(values[0], "PHPSESSID=abc") || !strings.Contains(values[0], "HttpOnly") {
		t.Fatalf("unexpected rewritten cookie %q", values[0])
	}
}
