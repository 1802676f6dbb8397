// Package server is the HTTP API layer: cookie-authenticated routes over the
// mail/calendar gateways and the assistant dispatcher, plus the OAuth login
// flow that mints session keys.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/google"
	"github.com/mailmate/mailmate/internal/instrumentation"
	"github.com/mailmate/mailmate/internal/llm"
)

const (
	// SessionCookieName is the cookie carrying the session key.
	SessionCookieName = "key"

	// sessionCookieMaxAge is how long a minted session cookie lives.
	sessionCookieMaxAge = 24 * time.Hour

	// contextKeySession is where the middleware stashes the session key.
	contextKeySession = "session_key"

	// DefaultPersona is used when a chat request carries no system prompt.
	DefaultPersona = "You are a helpful email and calendar assistant."
)

// Config holds the HTTP API server settings.
type Config struct {
	// Addr is the address the API server binds to.
	Addr string

	// FrontendOrigin is the frontend base URL: the CORS allow-origin and the
	// post-login redirect target.
	FrontendOrigin string

	// Google holds the OAuth client settings for the login flow.
	Google google.Config
}

// Server is the HTTP API server.
type Server struct {
	echo    *echo.Echo
	cfg     Config
	store   authstore.Store
	flow    *google.Flow
	chat    llm.Chatter
	metrics *instrumentation.Metrics
	health  *HealthChecker
}

// New creates the API server with its routes and middleware wired.
// metrics may be nil.
func New(cfg Config, store authstore.Store, chat llm.Chatter, metrics *instrumentation.Metrics) *Server {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	s := &Server{
		echo:    echo.New(),
		cfg:     cfg,
		store:   store,
		flow:    google.NewFlow(cfg.Google),
		chat:    chat,
		metrics: metrics,
		health:  NewHealthChecker(),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"Hello": "World"})
	})

	s.health.Register(s.echo)

	auth := s.echo.Group("/auth")
	auth.GET("/login", s.handleLogin)
	auth.GET("/callback", s.handleCallback)

	email := s.echo.Group("/email", s.requireSession)
	email.GET("", s.handleListEmails)
	email.GET("/", s.handleListEmails)
	email.POST("/send", s.handleSendEmail)
	email.POST("/mark-as-read", s.handleMarkAsRead)

	cal := s.echo.Group("/calendar", s.requireSession)
	cal.GET("", s.handleListEvents)
	cal.GET("/", s.handleListEvents)
	cal.POST("/event", s.handleAddEvent)

	chat := s.echo.Group("/assistant", s.requireSession)
	chat.POST("/chat", s.handleChat)
}

// requireSession rejects requests without a session cookie and stashes the
// key in the request context. Whether the key maps to stored credentials is
// checked at gateway construction time.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		c.Set(contextKeySession, cookie.Value)
		return next(c)
	}
}

// sessionKey returns the session key stashed by requireSession.
func sessionKey(c echo.Context) string {
	key, _ := c.Get(contextKeySession).(string)
	return key
}

// requestLogger logs each request and records HTTP metrics. Errors are
// committed to the response here so the logged status is the one sent.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		duration := time.Since(start)
		status := c.Response().Status
		s.metrics.RecordHTTPRequest(c.Request().Context(),
			c.Request().Method, c.Path(), status, duration)

		logger := slog.Default()
		attrs := []any{
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.Warn("request failed", attrs...)
		} else {
			logger.Info("request", attrs...)
		}
		return nil
	}
}

// httpError maps a gateway/dispatcher error to the echo error carrying the
// right status code.
func httpError(err error) error {
	return echo.NewHTTPError(apierr.StatusCode(err), err.Error())
}

// Start runs the API server until it fails or is shut down.
func (s *Server) Start() error {
	slog.Info("starting api server", slog.String("addr", s.cfg.Addr))
	err := s.echo.Start(s.cfg.Addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	slog.Info("shutting down api server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
