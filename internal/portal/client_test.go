package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form method=post name=microsoft_form><input type="hidden" name="TVZ" value="MOJtest" />
<button type="submit" name="microsoft_login">SSO</button></form>
</body></html>`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: "MOJtest", Value: "1", Path: "/"})
			fmt.Fprint(w, loginPage)
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			if r.PostFormValue("TVZ") != "MOJtest" {
				http.Error(w, "bad token", http.StatusForbidden)
				return
			}
			if _, ok := r.PostForm["microsoft_login"]; !ok {
				http.Error(w, "no button", http.StatusBadRequest)
				return
			}
			if _, err := r.Cookie("MOJtest"); err != nil {
				http.Error(w, "no cookie", http.StatusForbidden)
				return
			}
			http.Redirect(w, r, "/idp/authorize?client=tvz", http.StatusFound)
		}
	})
	mux.HandleFunc("/idp/authorize", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "sign in")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestToken(t *testing.T) {
	srv := newUpstream(t)
	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MOJtest", tok)
}

func TestLoginCarriesPortalCookies(t *testing.T) {
	srv := newUpstream(t)
	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	login, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MOJtest", login.Token)
	require.Len(t, login.Cookies, 1)
	assert.Equal(t, "MOJtest", login.Cookies[0].Name)
	assert.Equal(t, "1", login.Cookies[0].Value)
}

func TestLoginsDoNotShareSessions(t *testing.T) {
	var issued, resent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("PHPSESSID"); err == nil {
			resent.Add(1)
		}
		n := issued.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "sess" + strconv.Itoa(int(n)), Path: "/"})
		fmt.Fprintf(w, `<form method=post name=microsoft_form><input type="hidden" name="TVZ" value="MOJ%d"><button type="submit" name="microsoft_login">SSO</button></form>`, n)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	first, err := c.Login(context.Background())
	require.NoError(t, err)
	second, err := c.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "MOJ1", first.Token)
	assert.Equal(t, "MOJ2", second.Token)
	require.Len(t, first.Cookies, 1)
	require.Len(t, second.Cookies, 1)
	assert.NotEqual(t, first.Cookies[0].Value, second.Cookies[0].Value)
	assert.Zero(t, resent.Load(), "a login must not reuse another login's portal session")
}

func TestSSORedirect(t *testing.T) {
	srv := newUpstream(t)
	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	final, err := c.SSORedirect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/idp/authorize?client=tvz", final)
}

func TestTokenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<form method=post name=microsoft_form></form>`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = c.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoginPageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = c.Token(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedCode)
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("moj.tvz.hr", time.Second)
	assert.Error(t, err)
}

func TestLoggedIn(t *testing.T) {
	c, err := NewClient("https://moj.tvz.hr", time.Second)
	require.NoError(t, err)

	assert.True(t, c.LoggedIn("https://moj.tvz.hr/index.php?state=MOJabc"))
	assert.False(t, c.LoggedIn("https://moj.tvz.hr/index.php"))
	assert.False(t, c.LoggedIn("https://moj.tvz.hr/other.php?state=MOJabc"))
	assert.False(t, c.LoggedIn("https://evil.example/index.php?state=MOJabc"))
	assert.False(t, c.LoggedIn("://bad"))
}
