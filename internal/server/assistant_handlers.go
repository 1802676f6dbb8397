package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/assistant"
	"github.com/mailmate/mailmate/internal/gmail"
)

type chatRequest struct {
	Messages string `json:"messages"`
	System   string `json:"system"`
}

// handleChat runs one dispatcher turn over a registry bound to the caller's
// mail gateway and returns the final text as a plain-text body.
func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apierr.Validation("body", "malformed request body"))
	}
	if req.Messages == "" {
		return httpError(apierr.Validation("messages", ""))
	}

	persona := req.System
	if persona == "" {
		persona = DefaultPersona
	}

	gw, err := gmail.NewClient(ctx, s.store, sessionKey(c))
	if err != nil {
		return httpError(err)
	}

	dispatcher := assistant.NewDispatcher(s.chat,
		assistant.NewDefaultRegistry(s.chat, gw), s.metrics)

	text, err := dispatcher.Respond(ctx, persona, req.Messages)
	if err != nil {
		return httpError(err)
	}

	return c.String(http.StatusOK, text)
}
