package session

import (
	"context"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

// PageToken is the token handed to one browser session. Cookies holds the
// upstream portal cookies the token was issued under, if any.
type PageToken struct {
	Value    string
	IssuedAt time.Time
	Cookies  []Cookie
}

type Cookie struct {
	Name  string
	Value string
}

const sessionKey = "page"

func init() {
	gob.Register(PageToken{})
}

const sessionTTL = 30 * time.Minute

// Manager binds a page token to the browser session so reloading the login
// page keeps the same token.
type Manager struct {
	*scs.SessionManager
}

func NewManager(secureCookie bool) *Manager {
	return &Manager{SessionManager: newSessionManager(secureCookie)}
}

func newSessionManager(secureCookie bool) *scs.SessionManager {
	manager := scs.New()
	manager.Store = memstore.New()
	manager.Lifetime = sessionTTL
	manager.Cookie.Name = "mojtvz_session"
	manager.Cookie.Path = "/"
	manager.Cookie.HttpOnly = true
	manager.Cookie.SameSite = http.SameSiteLaxMode
	manager.Cookie.Secure = secureCookie
	return manager
}

// PageToken returns the token stored for this session, if any.
func (m *Manager) PageToken(ctx context.Context) (PageToken, bool) {
	pt, ok := m.Get(ctx, sessionKey).(PageToken)
	if !ok || pt.Value == "" {
		return PageToken{}, false
	}
	return pt, true
}

// SetPageToken stores pt, stamping IssuedAt when it is unset.
func (m *Manager) SetPageToken(ctx context.Context, pt PageToken) PageToken {
	if pt.IssuedAt.IsZero() {
		pt.IssuedAt = time.Now()
	}
	m.Put(ctx, sessionKey, pt)
	return pt
}

// Clear drops the token and rotates the session id.
func (m *Manager) Clear(ctx context.Context) error {
	m.Remove(ctx, sessionKey)
	return m.RenewToken(ctx)
}
