package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/google"
	"github.com/mailmate/mailmate/internal/logging"
)

// handleLogin redirects the browser to the Google consent screen.
func (s *Server) handleLogin(c echo.Context) error {
	url, err := s.flow.AuthURL()
	if err != nil {
		return httpError(err)
	}
	slog.Info("starting oauth flow", logging.Operation("auth.login"))
	return c.Redirect(http.StatusFound, url)
}

// handleCallback completes the authorization-code exchange: it mints a fresh
// session key, persists the credential bundle, sets the session cookie and
// sends the browser back to the frontend.
func (s *Server) handleCallback(c echo.Context) error {
	ctx := c.Request().Context()

	if !s.flow.ValidateState(c.QueryParam("state")) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid state")
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	oauthCfg := s.flow.OAuthConfig()
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordOAuthLogin(ctx, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "token exchange failed")
	}

	key := uuid.NewString()
	s.store.Set(key, &authstore.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     oauthCfg.Endpoint.TokenURL,
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		Scopes:       google.Scopes,
		Expiry:       token.Expiry,
	})
	if err := s.store.Save(); err != nil {
		s.metrics.RecordOAuthLogin(ctx, err)
		return httpError(err)
	}
	s.metrics.RecordOAuthLogin(ctx, nil)

	slog.Info("oauth login completed",
		logging.Operation("auth.callback"),
		logging.SessionHash(key))

	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    key,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		Path:     "/",
	})
	return c.Redirect(http.StatusFound, s.cfg.FrontendOrigin)
}
