// Package portal talks to the upstream moj.tvz.hr portal: it reads the page
// token off the login page and starts the SSO redirect chain.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mojtvz/internal/formscrape"
	"mojtvz/internal/loginpage"
	"mojtvz/internal/token"
)

// LoggedInPath is where the portal lands a browser after a successful SSO
// round trip, followed by "?state=<token>".
const LoggedInPath = "/index.php"

var (
	ErrNoToken        = errors.New("login page carries no token")
	ErrUnexpectedCode = errors.New("unexpected status code")
)

const maxPageBytes = 2 << 20

type Client struct {
	base    *url.URL
	timeout time.Duration
}

// Login is a page token together with the portal cookies it was issued
// under. The portal only accepts the token back alongside those cookies.
type Login struct {
	Token   string
	Cookies []*http.Cookie
}

func NewClient(base string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("portal url %q must be absolute", base)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return &Client{base: u, timeout: timeout}, nil
}

// newHTTP returns a client with a fresh cookie jar, so every login flow
// carries only its own portal session.
func (c *Client) newHTTP() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{Timeout: c.timeout, Jar: jar}, nil
}

func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

// LoginForm fetches the login page and returns its SSO form.
func (c *Client) LoginForm(ctx context.Context) (*formscrape.Form, error) {
	hc, err := c.newHTTP()
	if err != nil {
		return nil, err
	}
	return c.loginForm(ctx, hc)
}

func (c *Client) loginForm(ctx context.Context, hc *http.Client) (*formscrape.Form, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch login page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch login page: %w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	doc, err := formscrape.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	return doc.Form(loginpage.SSOFormName)
}

// Login fetches the login page in a new portal session and returns its
// token and the cookies the portal set while serving it.
func (c *Client) Login(ctx context.Context) (Login, error) {
	hc, err := c.newHTTP()
	if err != nil {
		return Login{}, err
	}
	form, err := c.loginForm(ctx, hc)
	if err != nil {
		return Login{}, err
	}
	tok := form.Hidden.Get(loginpage.TokenField)
	if tok == "" {
		return Login{}, ErrNoToken
	}
	token.CountUpstream()
	return Login{Token: tok, Cookies: hc.Jar.Cookies(c.base)}, nil
}

// Token implements token.Source with the token the upstream portal embedded
// in its own login page.
func (c *Client) Token(ctx context.Context) (string, error) {
	login, err := c.Login(ctx)
	if err != nil {
		return "", err
	}
	return login.Token, nil
}

// SSORedirect submits the SSO form and follows the redirect chain. The
// returned URL is the identity provider's sign-in page a browser should open.
func (c *Client) SSORedirect(ctx context.Context) (string, error) {
	hc, err := c.newHTTP()
	if err != nil {
		return "", err
	}
	form, err := c.loginForm(ctx, hc)
	if err != nil {
		return "", err
	}
	action, err := form.ResolveAction(c.base)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(form.Payload().Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit sso form: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("submit sso form: %w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	final := resp.Request.URL.String()
	log.Debug().Str("action", action.String()).Str("redirect", final).Msg("sso redirect resolved")
	return final, nil
}

// LoggedIn reports whether raw is the portal's post-login landing URL.
func (c *Client) LoggedIn(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Host != c.base.Host || u.Path != LoggedInPath {
		return false
	}
	return u.Query().Get("state") != ""
}
