// Package gcal is the Google Calendar backend of the planner: OAuth, event
// listing, and the create/get/delete calls the sync reconciler needs.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/event"
)

// Event status constants
const (
	eventStatusCancelled = "cancelled"
	maxResults           = 2500
)

// newCalendarService is swapped in tests.
var newCalendarService = func(ctx context.Context, httpClient *http.Client) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithHTTPClient(httpClient))
}

// Client talks to one calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
}

var _ calsync.Provider = (*Client)(nil)

// NewClient wraps an existing service. An empty calendarID means "primary".
func NewClient(svc *calendar.Service, calendarID string) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{svc: svc, calendarID: calendarID}
}

// Connect builds a Client from the stored OAuth credentials.
func Connect(ctx context.Context, paths Paths, calendarID string) (*Client, error) {
	httpClient, err := paths.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := newCalendarService(ctx, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%s: create calendar service: %w", ErrAPIError, err)
	}
	return NewClient(svc, calendarID), nil
}

// ListEvents returns the expanded events starting in [from, to), ordered by
// start. Cancelled events are dropped; all-day events are kept so callers
// can decide what to do with them.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]event.ProviderEvent, error) {
	var out []event.ProviderEvent
	call := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if pe, ok := convertEvent(item); ok {
				out = append(out, pe)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", c.calendarID, err)
	}
	return out, nil
}

// CreateEvent inserts ev and returns the new remote id.
func (c *Client) CreateEvent(ctx context.Context, ev calsync.NewEvent) (string, error) {
	created, err := c.svc.Events.Insert(c.calendarID, &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start, TimeZone: ev.TimeZone},
		End:         &calendar.EventDateTime{DateTime: ev.End, TimeZone: ev.TimeZone},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert %q: %w", ev.Summary, err)
	}
	return created.Id, nil
}

// GetEvent fetches one event. Missing and cancelled events report
// calsync.ErrNotFound.
func (c *Client) GetEvent(ctx context.Context, id string) (event.ProviderEvent, error) {
	item, err := c.svc.Events.Get(c.calendarID, id).Context(ctx).Do()
	if err != nil {
		return event.ProviderEvent{}, mapNotFound(err)
	}
	pe, ok := convertEvent(item)
	if !ok {
		return event.ProviderEvent{}, calsync.ErrNotFound
	}
	return pe, nil
}

// DeleteEvent removes one event.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// ListCalendars returns all calendars the user has access to
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var calendars []CalendarInfo
	err := c.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			calendars = append(calendars, CalendarInfo{
				ID:       item.Id,
				Summary:  item.Summary,
				Primary:  item.Primary,
				TimeZone: item.TimeZone,
				Access:   item.AccessRole,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return calendars, nil
}

// mapNotFound turns 404 and 410 responses into calsync.ErrNotFound.
func mapNotFound(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", calsync.ErrNotFound, gerr.Message)
	}
	return err
}

// convertEvent converts a Google Calendar event to the provider shape.
// Cancelled events are filtered out.
func convertEvent(item *calendar.Event) (event.ProviderEvent, bool) {
	if item == nil || item.Status == eventStatusCancelled {
		return event.ProviderEvent{}, false
	}
	pe := event.ProviderEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
	}
	if item.Start != nil {
		pe.Start = event.EventTime{DateTime: item.Start.DateTime, Date: item.Start.Date}
	}
	if item.End != nil {
		pe.End = event.EventTime{DateTime: item.End.DateTime, Date: item.End.Date}
	}
	return pe, true
}
