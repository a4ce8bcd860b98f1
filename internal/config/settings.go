package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

type SettingsType struct {
	m map[string]SettingType
}

type SettingType struct {
	Description string
	Value       string
}

func NewSettingType(print bool) *SettingsType {
	s := &SettingsType{m: make(map[string]SettingType)}

	s.Set(LISTEN_ADDR, "Server listen address", ":8080")
	s.Set(TLS_ENABLED, "Serve HTTPS with TLS_CERT/TLS_KEY (self-signed when missing)", "false")
	s.Set(TLS_CERT, "TLS certificate path", "certs/server.crt")
	s.Set(TLS_KEY, "TLS private key path", "certs/server.key")
	s.Set(PORTAL_UPSTREAM, "Upstream portal receiving form submissions", "https://moj.tvz.hr")
	s.Set(TOKEN_SOURCE, "Where page tokens come from: local or upstream", TokenSourceLocal)
	s.Set(TOKEN_TTL, "How long an issued page token stays valid", "30m")
	s.Set(IMAGE_ENDPOINT, "Image retrieval endpoint for carousel slides", "https://moj.tvz.hr/index.php")
	s.Set(GUEST_PATH, "Path the guest login form posts to", "/index.php")
	s.Set(GUEST_RESOURCE, "Resource locator sent with the guest login", "skini/repoz/18416/111937")
	s.Set(SLIDES_FILE, "YAML file with carousel slides, built-in slides when empty", "")
	s.Set(ASSET_BOOTSTRAP_CSS, "Bootstrap stylesheet URL", "https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css")
	s.Set(ASSET_BOOTSTRAP_JS, "Bootstrap bundle URL", "https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/js/bootstrap.bundle.min.js")
	s.Set(ASSET_JQUERY, "jQuery URL", "https://cdn.jsdelivr.net/npm/jquery@1.11.1/dist/jquery.min.js")
	s.Set(ASSET_ICONS_CSS, "Bootstrap icons stylesheet URL", "https://cdn.jsdelivr.net/npm/bootstrap-icons@1.11.1/font/bootstrap-icons.css")
	s.Set(PAGE_TITLE, "Login page title", "moj.tvz.hr")
	s.Set(SESSION_COOKIE_SECURE, "Mark the session cookie Secure", "true")
	s.Set(LIMITER_ENABLED, "Rate limit forwarded form submissions per client IP", "true")
	s.Set(LIMITER_RATE, "Forwarded submissions per second per client IP", "1")
	s.Set(LIMITER_BURST, "Burst of forwarded submissions per client IP", "10")
	s.Set(TRUSTED_PROXIES, "Proxy IPs/CIDRs whose X-Forwarded-For is trusted, comma separated", "")
	s.Set(LOG_LEVEL, "zerolog level (debug, info, warn, error)", "info")

	if print {
		table := tablewriter.NewWriter(os.Stdout)

		keys := make([]string, 0, len(s.m))
		for key := range s.m {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		table.Header("KEY", "Description", "value")
		for _, key := range keys {
			setting := s.m[key]
			table.Append([]string{key, setting.Description, setting.Value})
		}
		table.Render()
	}
	return s
}

func (s *SettingsType) Get(id string) string {
	return s.m[id].Value
}

func (s *SettingsType) Has(id string) bool {
	return len(s.m[id].Value) > 0
}

func (s *SettingsType) IsTrue(id string) bool {
	v := strings.ToLower(strings.TrimSpace(s.m[id].Value))
	return v == "1" || v == "true" || v == "yes"
}

// GetDuration falls back to def when the value does not parse.
func (s *SettingsType) GetDuration(id string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s.m[id].Value))
	if err != nil || d <= 0 {
		if s.Has(id) {
			log.Warn().Str("key", id).Str("value", s.m[id].Value).Msg("invalid duration setting, using default")
		}
		return def
	}
	return d
}

func (s *SettingsType) GetInt(id string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.m[id].Value))
	if err != nil {
		if s.Has(id) {
			log.Warn().Str("key", id).Str("value", s.m[id].Value).Msg("invalid integer setting, using default")
		}
		return def
	}
	return n
}

func (s *SettingsType) GetFloat(id string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s.m[id].Value), 64)
	if err != nil {
		if s.Has(id) {
			log.Warn().Str("key", id).Str("value", s.m[id].Value).Msg("invalid number setting, using default")
		}
		return def
	}
	return f
}

func (s *SettingsType) Set(id string, description string, defaultValue string) {
	if value, ok := os.LookupEnv(id); ok {
		s.m[id] = SettingType{Description: description, Value: value}
	} else {
		s.m[id] = SettingType{Description: description, Value: defaultValue}
	}
}

const (
	TokenSourceLocal    = "local"
	TokenSourceUpstream = "upstream"
)

const (
	LISTEN_ADDR           = "LISTEN_ADDR"
	TLS_ENABLED           = "TLS_ENABLED"
	TLS_CERT              = "TLS_CERT"
	TLS_KEY               = "TLS_KEY"
	PORTAL_UPSTREAM       = "PORTAL_UPSTREAM"
	TOKEN_SOURCE          = "TOKEN_SOURCE"
	TOKEN_TTL             = "TOKEN_TTL"
	IMAGE_ENDPOINT        = "IMAGE_ENDPOINT"
	GUEST_PATH            = "GUEST_PATH"
	GUEST_RESOURCE        = "GUEST_RESOURCE"
	SLIDES_FILE           = "SLIDES_FILE"
	ASSET_BOOTSTRAP_CSS   = "ASSET_BOOTSTRAP_CSS"
	ASSET_BOOTSTRAP_JS    = "ASSET_BOOTSTRAP_JS"
	ASSET_JQUERY          = "ASSET_JQUERY"
	ASSET_ICONS_CSS       = "ASSET_ICONS_CSS"
	PAGE_TITLE            = "PAGE_TITLE"
	SESSION_COOKIE_SECURE = "SESSION_COOKIE_SECURE"
	LIMITER_ENABLED       = "LIMITER_ENABLED"
	LIMITER_RATE          = "LIMITER_RATE"
	LIMITER_BURST         = "LIMITER_BURST"
	TRUSTED_PROXIES       = "TRUSTED_PROXIES"
	LOG_LEVEL             = "LOG_LEVEL"
)
