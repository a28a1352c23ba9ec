// Package calsync pushes locally added events to the calendar provider and
// replays the recorded mapping to verify or revert a push.
package calsync

import (
	"context"
	"errors"
	"time"

	"github.com/jima/gcal-planner/internal/event"
)

// ErrNotFound is returned by a Provider when the remote event does not exist.
var ErrNotFound = errors.New("event not found in calendar")

// WallClockLayout is the local date-time form sent with a zone label.
const WallClockLayout = "2006-01-02T15:04:05"

// Provider is the calendar backend.
type Provider interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]event.ProviderEvent, error)
	CreateEvent(ctx context.Context, ev NewEvent) (string, error)
	GetEvent(ctx context.Context, id string) (event.ProviderEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// NewEvent is a create request. Start and End are wall-clock times in TimeZone.
type NewEvent struct {
	Summary     string
	Description string
	Start       string
	End         string
	TimeZone    string
}

// WallClock renders t as local wall-clock time in loc. The zone's real
// offset at t is used, so daylight-saving transitions are respected.
func WallClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(WallClockLayout)
}

// Mapping links a created remote event to the local record it came from.
type Mapping struct {
	RemoteID string `json:"googleCalendarId"`
	Name     string `json:"eventName"`
	LocalID  string `json:"manualId"`
}

// Record is the persisted result of a sync, needed to verify or revert it.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Created   []Mapping `json:"createdEventIds"`
}

// ItemError is a per-event failure.
type ItemError struct {
	Event string `json:"event"`
	Error string `json:"error"`
}
