// Package store persists the planner's documents: the configured events
// with their task projection and time ranges, the last sync record, and the
// inbox of requests dropped in by other tools.
package store

import (
	"context"
	"errors"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/schedule"
)

// ErrNoSyncRecord is returned when no sync has been recorded.
var ErrNoSyncRecord = errors.New("no sync record found")

// Document is the canonical record set.
type Document struct {
	ConfiguredEvents []event.Record      `json:"configuredEvents"`
	Tasks            []event.Task        `json:"tasks"`
	TimeRanges       schedule.TimeRanges `json:"timeRanges"`
}

// Store is the durable state. Reads of missing or corrupt data return an
// empty value; failed writes are returned.
type Store interface {
	Load(ctx context.Context) (Document, error)
	// Update runs fn on the current document and writes the result. Calls
	// are serialized so concurrent updates are never lost.
	Update(ctx context.Context, fn func(*Document) error) error

	LoadSync(ctx context.Context) (calsync.Record, error)
	SaveSync(ctx context.Context, rec calsync.Record) error
	DeleteSync(ctx context.Context) error

	// Inbox returns queued requests without removing them.
	Inbox(ctx context.Context) ([]event.Request, error)
	ClearInbox(ctx context.Context) error
}
