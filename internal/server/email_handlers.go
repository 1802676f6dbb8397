package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/gmail"
)

// handleListEmails returns normalized inbox messages.
// Query params: count (default 10), includeRead (default false), q (repeated
// keyword terms).
func (s *Server) handleListEmails(c echo.Context) error {
	ctx := c.Request().Context()

	count := int64(10)
	if v := c.QueryParam("count"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return httpError(apierr.Validation("count", "must be a positive integer"))
		}
		count = n
	}

	includeRead := false
	if v := c.QueryParam("includeRead"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return httpError(apierr.Validation("includeRead", "must be a boolean"))
		}
		includeRead = b
	}

	keywords := c.QueryParams()["q"]

	gw, err := gmail.NewClient(ctx, s.store, sessionKey(c))
	if err != nil {
		return httpError(err)
	}

	emails, err := gw.ListEmails(ctx, count, includeRead, keywords)
	s.metrics.RecordGoogleAPIOperation(ctx, "gmail", "list", err)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"message": emails})
}

type sendEmailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// handleSendEmail sends a message, threading it as a reply when both id and
// threadId are present. One without the other is rejected before the gateway
// is touched.
func (s *Server) handleSendEmail(c echo.Context) error {
	ctx := c.Request().Context()

	var req sendEmailRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apierr.Validation("body", "malformed request body"))
	}
	switch {
	case req.To == "":
		return httpError(apierr.Validation("to", ""))
	case req.Subject == "":
		return httpError(apierr.Validation("subject", ""))
	case req.Body == "":
		return httpError(apierr.Validation("body", ""))
	case (req.ThreadID == "") != (req.ID == ""):
		return httpError(apierr.Validation("id", "threadId and id are required together"))
	}

	gw, err := gmail.NewClient(ctx, s.store, sessionKey(c))
	if err != nil {
		return httpError(err)
	}

	result, err := gw.SendEmail(ctx, req.To, req.Subject, req.Body, req.ID, req.ThreadID)
	s.metrics.RecordGoogleAPIOperation(ctx, "gmail", "send", err)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

type markAsReadRequest struct {
	IDs []string `json:"ids"`
}

// handleMarkAsRead removes the unread label from the given message ids.
func (s *Server) handleMarkAsRead(c echo.Context) error {
	ctx := c.Request().Context()

	var req markAsReadRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apierr.Validation("body", "malformed request body"))
	}
	if len(req.IDs) == 0 {
		return httpError(apierr.Validation("ids", ""))
	}

	gw, err := gmail.NewClient(ctx, s.store, sessionKey(c))
	if err != nil {
		return httpError(err)
	}

	err = gw.MarkAsRead(ctx, req.IDs)
	s.metrics.RecordGoogleAPIOperation(ctx, "gmail", "markRead", err)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Emails marked as read successfully"})
}
