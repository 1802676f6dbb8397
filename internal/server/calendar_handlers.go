package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/calendar"
)

// handleListEvents returns upcoming events from the primary calendar.
// Query params: start and end as RFC 3339 timestamps, both optional.
func (s *Server) handleListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	gw, err := calendar.NewClient(ctx, s.store, sessionKey(c))
	if err != nil {
		return httpError(err)
	}

	events, err := gw.ListEvents(ctx, c.QueryParam("start"), c.QueryParam("end"), "primary")
	s.metrics.RecordGoogleAPIOperation(ctx, "calendar", "list", err)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, events)
}

type addEventRequest struct {
	Summary     string             `json:"summary"`
	Location    string             `json:"location"`
	Description string             `json:"description"`
	Start       calendar.EventTime `json:"start"`
	End         calendar.EventTime `json:"end"`
}

// handleAddEvent inserts an event into the primary calendar. Both boundaries
// must carry a parseable dateTime.
func (s *Server) handleAddEvent(c echo.Context) error {
	ctx := c.Request().Context()

	var req addEventRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apierr.Validation("body", "malformed request body"))
	}
	if req.Summary == "" {
		return httpError(apierr.Validation("summary", ""))
	}
	if err := validateEventTime("start.dateTime", req.Start); err != nil {
		return httpError(err)
	}
	if err := validateEventTime("end.dateTime", req.End); err != nil {
		return httpError(err)
	}

	gw, err := calendar.NewClient(ctx, s.store, sessionKey(c))
	if err != nil {
		return httpError(err)
	}

	created, err := gw.AddEvent(ctx, req.Summary, req.Location, req.Description, req.Start, req.End)
	s.metrics.RecordGoogleAPIOperation(ctx, "calendar", "add", err)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, created)
}

// eventTimeLayouts are the accepted dateTime formats: RFC 3339 and the same
// without a zone designator.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func validateEventTime(field string, et calendar.EventTime) error {
	if et.DateTime == "" {
		return apierr.Validation(field, "")
	}
	for _, layout := range eventTimeLayouts {
		if _, err := time.Parse(layout, et.DateTime); err == nil {
			return nil
		}
	}
	return apierr.Validation(field, "is not a valid datetime")
}
