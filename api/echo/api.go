// Package echo exposes the session authentication endpoints and the
// request-boundary middleware over labstack/echo.
package echo

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
	"github.com/pixelvault/authgate/internal/wallet"
	"github.com/pixelvault/authgate/services"
)

// AuthAPI holds the handler dependencies for the login handshake and
// session lifecycle endpoints.
type AuthAPI struct {
	nonces   *services.NonceService
	tokens   *services.TokenService
	csrf     *services.CSRFService
	verifier wallet.Verifier
	cookies  *CookieManager
	probe    services.StoreProbe
}

func NewAuthAPI(
	nonces *services.NonceService,
	tokens *services.TokenService,
	csrf *services.CSRFService,
	verifier wallet.Verifier,
	cookies *CookieManager,
	probe services.StoreProbe,
) *AuthAPI {
	return &AuthAPI{
		nonces:   nonces,
		tokens:   tokens,
		csrf:     csrf,
		verifier: verifier,
		cookies:  cookies,
		probe:    probe,
	}
}

// RegisterRoutes registers the auth endpoints with their per-endpoint rate
// windows. Logout is CSRF-exempt: a forged logout is a nuisance, not a
// privilege, and requiring CSRF there can strand a client whose record is
// already gone.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo, mw *AuthMiddleware) {
	e.GET("/login", a.LoginChallengeHandler, mw.RateLimit("login_challenge", 60, 10))
	e.POST("/login", a.LoginHandler, mw.RateLimit("login", 60, 5))
	e.POST("/refresh", a.RefreshHandler, mw.RateLimit("refresh", 60, 10))
	e.POST("/logout", a.LogoutHandler, mw.RateLimit("logout", 60, 10))
	e.GET("/session", a.SessionHandler, mw.RateLimit("session", 60, 30), mw.RequireAuth())
	e.GET("/healthz", a.HealthHandler)
}

// LoginChallengeHandler issues a one-time nonce for the principal to sign.
func (a *AuthAPI) LoginChallengeHandler(c echo.Context) error {
	principalID := c.QueryParam("principal")
	if _, err := wallet.ParsePublicKey(principalID); err != nil {
		return respondError(c, autherrors.Wrap(autherrors.CodeValidation, "invalid principal", err))
	}

	nonce, err := a.nonces.Issue(c.Request().Context(), principalID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"nonce": nonce})
}

type loginRequest struct {
	Principal string `json:"principal"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

// LoginHandler completes the challenge/response handshake and establishes
// the session. The challenge is consumed before the signature check, so
// every signature attempt spends its challenge: a failed attempt must
// request a fresh nonce, which keeps the signature step un-retryable.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, autherrors.Wrap(autherrors.CodeValidation, "malformed login request", err))
	}

	publicKey, err := wallet.ParsePublicKey(req.Principal)
	if err != nil {
		return respondError(c, autherrors.Wrap(autherrors.CodeValidation, "invalid principal", err))
	}
	signature, err := wallet.ParseSignature(req.Signature)
	if err != nil {
		return respondError(c, autherrors.Wrap(autherrors.CodeValidation, "invalid signature encoding", err))
	}
	if req.Nonce == "" {
		return respondError(c, autherrors.New(autherrors.CodeValidation, "nonce is required"))
	}

	ctx := c.Request().Context()
	if err := a.nonces.Consume(ctx, req.Principal, req.Nonce); err != nil {
		return respondError(c, err)
	}

	if !a.verifier.Verify([]byte(req.Nonce), signature, publicKey) {
		log.Warn().Str("principal", req.Principal).Str("ip", c.RealIP()).Msg("login signature verification failed")
		return respondError(c, autherrors.New(autherrors.CodeInvalidSignature, "signature verification failed"))
	}

	fp := services.NewFingerprint(c.Request().UserAgent(), c.RealIP())
	pair, err := a.tokens.CreatePair(ctx, req.Principal, uuid.NewString(), fp)
	if err != nil {
		return respondError(c, err)
	}

	csrfToken, err := a.csrf.GetOrCreate(ctx, req.Principal)
	if err != nil {
		return respondError(c, err)
	}

	a.cookies.SetAuthCookies(c, pair)
	a.cookies.SetCSRFCookie(c, csrfToken)

	log.Info().Str("principal", req.Principal).Msg("login succeeded")
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"principal": req.Principal,
	})
}

// RefreshHandler rotates the token pair. Any failure clears every auth
// cookie so the client is never left half-authenticated.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	refreshToken := cookieValue(c, RefreshTokenCookie)
	if refreshToken == "" {
		a.cookies.ClearAuthCookies(c)
		return respondError(c, autherrors.New(autherrors.CodeNoRefreshToken, "no refresh token cookie"))
	}
	sessionNonce := cookieValue(c, SessionNonceCookie)
	if sessionNonce == "" {
		a.cookies.ClearAuthCookies(c)
		return respondError(c, autherrors.New(autherrors.CodeMissingNonce, "no session nonce cookie"))
	}

	ctx := c.Request().Context()
	fp := services.NewFingerprint(c.Request().UserAgent(), c.RealIP())

	claims, err := a.tokens.Verify(ctx, refreshToken, domain.TokenKindRefresh, fp)
	if err != nil {
		a.cookies.ClearAuthCookies(c)
		return respondError(c, autherrors.Wrap(autherrors.CodeInvalidRefreshToken, "refresh token rejected", err))
	}
	if claims.SessionNonce != sessionNonce {
		a.cookies.ClearAuthCookies(c)
		return respondError(c, autherrors.New(autherrors.CodeNonceMismatch, "session nonce mismatch"))
	}

	pair, err := a.tokens.Rotate(ctx, refreshToken, fp)
	if err != nil {
		a.cookies.ClearAuthCookies(c)
		return respondError(c, autherrors.Wrap(autherrors.CodeInvalidRefreshToken, "rotation failed", err))
	}

	a.cookies.SetAuthCookies(c, pair)
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"principal": pair.AccessClaims.Subject,
	})
}

// LogoutHandler revokes both tokens, deletes the csrf record, and clears
// every cookie. Best effort throughout: logout never fails the client.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var principalID string
	if accessToken := cookieValue(c, AccessTokenCookie); accessToken != "" {
		if claims, err := a.tokens.Decode(accessToken); err == nil {
			principalID = claims.Subject
		}
		if err := a.tokens.Revoke(ctx, accessToken, domain.RevocationLogout); err != nil {
			log.Warn().Err(err).Msg("failed to revoke access token on logout")
		}
	}
	if refreshToken := cookieValue(c, RefreshTokenCookie); refreshToken != "" {
		if principalID == "" {
			if claims, err := a.tokens.Decode(refreshToken); err == nil {
				principalID = claims.Subject
			}
		}
		if err := a.tokens.Revoke(ctx, refreshToken, domain.RevocationLogout); err != nil {
			log.Warn().Err(err).Msg("failed to revoke refresh token on logout")
		}
	}

	if principalID != "" {
		if err := a.csrf.DeleteFor(ctx, principalID); err != nil {
			log.Warn().Err(err).Str("principal", principalID).Msg("failed to delete csrf record on logout")
		}
	}

	a.cookies.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// SessionHandler reports the authenticated principal. RequireAuth has
// already resolved it (rotating the pair if needed) or rejected the
// request.
func (a *AuthAPI) SessionHandler(c echo.Context) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return respondError(c, autherrors.New(autherrors.CodeNoAccessToken, "no principal resolved"))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          principal.ID,
	})
}

// HealthHandler reports backing store connectivity.
func (a *AuthAPI) HealthHandler(c echo.Context) error {
	if a.probe != nil {
		if err := a.probe(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
