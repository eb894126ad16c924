package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pixelvault/authgate/config"
	"github.com/pixelvault/authgate/domain"
)

// Credential cookie names. Clearing paths must cover every one of these so
// a failed request never leaves a client half-authenticated.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	SessionNonceCookie = "sessionNonce"
	CSRFTokenCookie    = "csrfToken"
)

const csrfCookieTTL = 30 * time.Minute

// CookieManager writes credential cookies with attributes taken from the
// deployment-level CookiePolicy, never from request inspection.
type CookieManager struct {
	policy     config.CookiePolicy
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieManager(policy config.CookiePolicy, accessTTL, refreshTTL time.Duration) *CookieManager {
	return &CookieManager{policy: policy, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// SetAuthCookies attaches a freshly minted token pair and its session nonce.
func (m *CookieManager) SetAuthCookies(c echo.Context, pair *domain.TokenPair) {
	m.set(c, AccessTokenCookie, pair.AccessToken, m.accessTTL, true)
	m.set(c, RefreshTokenCookie, pair.RefreshToken, m.refreshTTL, true)
	m.set(c, SessionNonceCookie, pair.AccessClaims.SessionNonce, m.refreshTTL, true)
}

// SetCSRFCookie attaches the mutation token. Not http-only: the client
// script must read it to echo it back in the X-CSRF-Token header.
func (m *CookieManager) SetCSRFCookie(c echo.Context, token string) {
	m.set(c, CSRFTokenCookie, token, csrfCookieTTL, false)
}

// ClearAuthCookies expires every credential cookie with matching attributes.
func (m *CookieManager) ClearAuthCookies(c echo.Context) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, SessionNonceCookie, CSRFTokenCookie} {
		m.set(c, name, "", -time.Second, name != CSRFTokenCookie)
	}
}

func (m *CookieManager) set(c echo.Context, name, value string, maxAge time.Duration, httpOnly bool) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.policy.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: httpOnly,
		Secure:   m.policy.Secure,
		SameSite: m.policy.SameSite(),
	})
}
