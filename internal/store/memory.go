package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/event"
)

// Memory is a Store held in process memory. Documents are copied through
// JSON so callers never share slices with the store.
type Memory struct {
	mu    sync.Mutex
	doc   []byte
	last  *calsync.Record
	inbox []event.Request

	// FailWrites makes every write return this error.
	FailWrites error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(_ context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decode(), nil
}

func (m *Memory) decode() Document {
	var doc Document
	if m.doc != nil {
		_ = json.Unmarshal(m.doc, &doc)
	}
	return doc
}

func (m *Memory) Update(_ context.Context, fn func(*Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.decode()
	if err := fn(&doc); err != nil {
		return err
	}
	if m.FailWrites != nil {
		return fmt.Errorf("write user data: %w", m.FailWrites)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	m.doc = data
	return nil
}

func (m *Memory) LoadSync(_ context.Context) (calsync.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil || len(m.last.Created) == 0 {
		return calsync.Record{}, ErrNoSyncRecord
	}
	rec := *m.last
	rec.Created = append([]calsync.Mapping(nil), m.last.Created...)
	return rec, nil
}

func (m *Memory) SaveSync(_ context.Context, rec calsync.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return fmt.Errorf("write sync record: %w", m.FailWrites)
	}
	rec.Created = append([]calsync.Mapping(nil), rec.Created...)
	m.last = &rec
	return nil
}

func (m *Memory) DeleteSync(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = nil
	return nil
}

// Enqueue adds requests to the inbox.
func (m *Memory) Enqueue(reqs ...event.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = append(m.inbox, reqs...)
}

func (m *Memory) Inbox(_ context.Context) ([]event.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.Request(nil), m.inbox...), nil
}

func (m *Memory) ClearInbox(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = nil
	return nil
}
