// Package relay is the avatar-frontend relay: it hands the browser a session
// cookie on entry and forwards chat messages to the backend API with the
// backend's session cookie attached.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mailmate/mailmate/internal/logging"
	"github.com/mailmate/mailmate/internal/server"
)

// AuthCookieName is the relay-side cookie carrying the backend session key.
const AuthCookieName = "auth_uid"

// cookieMaxAge mirrors the backend session cookie lifetime.
const cookieMaxAge = 24 * time.Hour

// Config holds the relay settings.
type Config struct {
	// Addr is the address the relay binds to.
	Addr string

	// BackendURL is the base URL of the backend API.
	BackendURL string
}

// Server is the relay server.
type Server struct {
	echo   *echo.Echo
	cfg    Config
	client *http.Client
}

// New creates the relay with its routes wired.
func New(cfg Config) *Server {
	s := &Server{
		echo: echo.New(),
		cfg:  cfg,
		// No client timeout: chat turns can be slow and the avatar frontend
		// streams the body as it arrives.
		client: &http.Client{},
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
	}))

	s.echo.GET("/", s.handleEntry)
	s.echo.GET("/assistant", s.handleAssistantPage)
	s.echo.POST("/assistant/chat", s.handleChat)
	return s
}

// handleEntry is the avatar frontend's entry point: the backend redirects
// here with the session key as a query parameter, which becomes a cookie
// before the browser moves on to the assistant page.
func (s *Server) handleEntry(c echo.Context) error {
	authUID := c.QueryParam(AuthCookieName)
	slog.Info("new relay session",
		logging.Operation("relay.entry"),
		logging.SessionHash(authUID))

	c.SetCookie(&http.Cookie{
		Name:     AuthCookieName,
		Value:    authUID,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cookieMaxAge.Seconds()),
		Path:     "/",
	})
	return c.Redirect(http.StatusFound, "/assistant")
}

// handleAssistantPage is a placeholder for the avatar frontend bundle, which
// is deployed separately.
func (s *Server) handleAssistantPage(c echo.Context) error {
	return c.HTML(http.StatusOK, "<!DOCTYPE html><title>mailmate assistant</title><p>assistant frontend</p>")
}

// handleChat forwards the chat request to the backend, translating the relay
// cookie into the backend session cookie, and pipes the plain-text answer
// back.
func (s *Server) handleChat(c echo.Context) error {
	cookie, err := c.Cookie(AuthCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	req, err := http.NewRequestWithContext(c.Request().Context(),
		http.MethodPost,
		strings.TrimSuffix(s.cfg.BackendURL, "/")+"/assistant/chat",
		c.Request().Body)
	if err != nil {
		return fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: server.SessionCookieName, Value: cookie.Value})

	resp, err := s.client.Do(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	c.Response().WriteHeader(resp.StatusCode)
	_, err = io.Copy(c.Response(), resp.Body)
	return err
}

// Start runs the relay until it fails or is shut down.
func (s *Server) Start() error {
	slog.Info("starting relay server", slog.String("addr", s.cfg.Addr))
	err := s.echo.Start(s.cfg.Addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the relay.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down relay server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
