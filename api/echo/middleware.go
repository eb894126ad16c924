package echo

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
	"github.com/pixelvault/authgate/services"
)

// principalContextKey carries the resolved principal through the echo
// context to downstream handlers.
const principalContextKey = "auth.principal"

// CSRFHeader is the header mutating requests must echo the csrf token in.
const CSRFHeader = "X-CSRF-Token"

// AuthMiddleware is the request-boundary composition: abuse check, token
// verification with silent rotation, and CSRF enforcement for mutating
// requests.
type AuthMiddleware struct {
	tokens  *services.TokenService
	csrf    *services.CSRFService
	guard   *services.AbuseGuard
	cookies *CookieManager
}

func NewAuthMiddleware(
	tokens *services.TokenService,
	csrf *services.CSRFService,
	guard *services.AbuseGuard,
	cookies *CookieManager,
) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, csrf: csrf, guard: guard, cookies: cookies}
}

// PrincipalFrom returns the principal resolved by RequireAuth.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	principal, ok := c.Get(principalContextKey).(*domain.Principal)
	return principal, ok
}

// RateLimit runs the abuse guard for the named endpoint. It is registered
// ahead of RequireAuth so abusive traffic is shed before any token work,
// which means no principal has been resolved yet and edge windows key by
// IP/user-agent only. The principal contributes to the key only if the
// limiter is registered behind RequireAuth, or when the guard is invoked
// directly after authentication.
func (m *AuthMiddleware) RateLimit(endpoint string, windowSeconds, maxAttempts int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := services.AbuseRequest{
				IP:        c.RealIP(),
				UserAgent: c.Request().UserAgent(),
				Endpoint:  endpoint,
			}
			if principal, ok := PrincipalFrom(c); ok {
				req.PrincipalID = principal.ID
			}
			if err := m.guard.Check(c.Request().Context(), req, windowSeconds, maxAttempts); err != nil {
				return respondThrottled(c)
			}
			return next(c)
		}
	}
}

// RequireAuth verifies the access token and resolves the principal. When
// the access token is expired and a refresh token is present, the pair is
// rotated transparently and the new cookies attached to the response.
func (m *AuthMiddleware) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			fp := services.NewFingerprint(c.Request().UserAgent(), c.RealIP())

			accessToken := bearerToken(c)
			if accessToken == "" {
				m.cookies.ClearAuthCookies(c)
				return respondError(c, autherrors.New(autherrors.CodeNoAccessToken, "no access token supplied"))
			}

			claims, err := m.tokens.Verify(ctx, accessToken, domain.TokenKindAccess, fp)
			if err != nil {
				// Only a structurally valid but expired token may fall
				// through to rotation; every other failure is terminal.
				if autherrors.CodeOf(err) != autherrors.CodeTokenExpired {
					m.cookies.ClearAuthCookies(c)
					return respondError(c, err)
				}

				refreshToken := cookieValue(c, RefreshTokenCookie)
				if refreshToken == "" {
					m.cookies.ClearAuthCookies(c)
					return respondError(c, autherrors.New(autherrors.CodeSessionExpired, "access token expired, no refresh token"))
				}

				pair, rotateErr := m.tokens.Rotate(ctx, refreshToken, fp)
				if rotateErr != nil {
					log.Debug().Err(rotateErr).Msg("token rotation at edge failed")
					m.cookies.ClearAuthCookies(c)
					return respondError(c, autherrors.New(autherrors.CodeSessionExpired, "session expired"))
				}

				claims, err = m.tokens.Verify(ctx, pair.AccessToken, domain.TokenKindAccess, fp)
				if err != nil {
					m.cookies.ClearAuthCookies(c)
					return respondError(c, autherrors.New(autherrors.CodeSessionExpired, "session expired"))
				}
				m.cookies.SetAuthCookies(c, pair)
			}

			c.Set(principalContextKey, &domain.Principal{
				ID:           claims.Subject,
				SessionNonce: claims.SessionNonce,
			})
			return next(c)
		}
	}
}

// RequireCSRF enforces the mutation token for state-changing handlers and
// re-issues a fresh csrf cookie on success so the client can keep mutating
// without an extra round trip. Must run after RequireAuth.
func (m *AuthMiddleware) RequireCSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFrom(c)
			if !ok {
				return respondError(c, autherrors.New(autherrors.CodeNoAccessToken, "csrf check requires an authenticated principal"))
			}

			supplied := c.Request().Header.Get(CSRFHeader)
			if err := m.csrf.Verify(c.Request().Context(), principal.ID, supplied); err != nil {
				return respondError(c, err)
			}

			token, err := m.csrf.GetOrCreate(c.Request().Context(), principal.ID)
			if err == nil {
				m.cookies.SetCSRFCookie(c, token)
			} else {
				log.Warn().Err(err).Str("principal", principal.ID).Msg("failed to re-issue csrf cookie")
			}
			return next(c)
		}
	}
}

// bearerToken extracts the access token from the credential cookie or the
// Authorization header.
func bearerToken(c echo.Context) string {
	if value := cookieValue(c, AccessTokenCookie); value != "" {
		return value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// respondError maps an error's stable code to an HTTP status via the error
// package's lookup table. Responses carry the code and nothing else about
// which internal check failed; full context is logged server-side.
func respondError(c echo.Context, err error) error {
	code := autherrors.CodeOf(err)
	status := autherrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", c.Path()).Msg("request rejected")
	}
	if code == autherrors.CodeRateLimited || code == autherrors.CodeDenylisted {
		return respondThrottled(c)
	}
	return c.JSON(status, map[string]string{"error": string(code)})
}

// respondThrottled is the single throttling response. Denylisted clients
// must not be able to tell themselves apart from rate-limited ones.
func respondThrottled(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": string(autherrors.CodeRateLimited)})
}
