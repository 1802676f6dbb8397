// Package calendar is the calendar gateway: it authenticates with the
// credentials stored for one session and exposes event listing and creation
// on the user's Google Calendar.
package calendar

import (
	"context"
	"log/slog"
	"time"

	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/authstore"
	"github.com/mailmate/mailmate/internal/google"
	"github.com/mailmate/mailmate/internal/logging"
)

// DefaultTimeZone is applied to event times that carry no explicit zone.
const DefaultTimeZone = "Asia/Singapore"

// EventTime is the dateTime/timeZone pair used for event boundaries.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Client wraps the Google Calendar service for a single session.
type Client struct {
	svc        *calendarv3.Service
	sessionKey string
}

// NewClient creates a calendar gateway bound to the credentials stored for
// the session key. Returns apierr.ErrUnauthorized when no bundle exists.
func NewClient(ctx context.Context, store authstore.Store, sessionKey string) (*Client, error) {
	httpClient, err := google.HTTPClient(ctx, store, sessionKey)
	if err != nil {
		return nil, err
	}

	svc, err := calendarv3.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, apierr.Upstream("calendar", err)
	}

	return &Client{svc: svc, sessionKey: sessionKey}, nil
}

// ListEvents fetches upcoming events from the given calendar. With no start
// the range begins now. An open-ended range returns the next 10 events; a
// bounded range returns up to 100.
func (c *Client) ListEvents(ctx context.Context, start, end, calendarID string) ([]*calendarv3.Event, error) {
	if start == "" {
		start = time.Now().UTC().Format(time.RFC3339)
	}

	call := c.svc.Events.List(calendarID).
		TimeMin(start).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if end == "" {
		call = call.MaxResults(10)
	} else {
		call = call.TimeMax(end).MaxResults(100)
	}

	res, err := call.Do()
	if err != nil {
		return nil, apierr.Upstream("calendar", err)
	}

	slog.Debug("listed events",
		logging.Operation("calendar.list"),
		logging.SessionHash(c.sessionKey),
		slog.Int("count", len(res.Items)))

	return res.Items, nil
}

// AddEvent inserts an event into the user's primary calendar.
func (c *Client) AddEvent(ctx context.Context, summary, location, description string, start, end EventTime) (*calendarv3.Event, error) {
	event := &calendarv3.Event{
		Summary:     summary,
		Location:    location,
		Description: description,
		Start: &calendarv3.EventDateTime{
			DateTime: start.DateTime,
			TimeZone: orDefault(start.TimeZone),
		},
		End: &calendarv3.EventDateTime{
			DateTime: end.DateTime,
			TimeZone: orDefault(end.TimeZone),
		},
	}

	created, err := c.svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return nil, apierr.Upstream("calendar", err)
	}

	slog.Info("event created",
		logging.Operation("calendar.add"),
		logging.SessionHash(c.sessionKey),
		slog.String("event_id", created.Id))

	return created, nil
}

func orDefault(tz string) string {
	if tz == "" {
		return DefaultTimeZone
	}
	return tz
}
