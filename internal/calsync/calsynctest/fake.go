// Package calsynctest provides an in-memory calsync.Provider for tests.
package calsynctest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/event"
)

// Provider stores events in memory. Fail* maps force errors by event
// summary (create) or remote id (get, delete).
type Provider struct {
	mu     sync.Mutex
	events []event.ProviderEvent
	seq    int

	FailCreate map[string]error
	FailGet    map[string]error
	FailDelete map[string]error
	FailList   error

	Created []calsync.NewEvent
}

// New returns a Provider holding events.
func New(events ...event.ProviderEvent) *Provider {
	return &Provider{events: append([]event.ProviderEvent(nil), events...)}
}

// Events returns a snapshot of stored events.
func (p *Provider) Events() []event.ProviderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.ProviderEvent(nil), p.events...)
}

func (p *Provider) ListEvents(_ context.Context, from, to time.Time) ([]event.ProviderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailList != nil {
		return nil, p.FailList
	}
	var out []event.ProviderEvent
	for _, pe := range p.events {
		if pe.Timed() {
			start, err := pe.StartTime()
			if err == nil && (start.Before(from) || !start.Before(to)) {
				continue
			}
		}
		out = append(out, pe)
	}
	return out, nil
}

func (p *Provider) CreateEvent(_ context.Context, ev calsync.NewEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailCreate[ev.Summary]; err != nil {
		return "", err
	}
	loc, err := time.LoadLocation(ev.TimeZone)
	if err != nil {
		return "", fmt.Errorf("load zone: %w", err)
	}
	start, err := time.ParseInLocation(calsync.WallClockLayout, ev.Start, loc)
	if err != nil {
		return "", fmt.Errorf("parse start: %w", err)
	}
	end, err := time.ParseInLocation(calsync.WallClockLayout, ev.End, loc)
	if err != nil {
		return "", fmt.Errorf("parse end: %w", err)
	}

	p.seq++
	id := fmt.Sprintf("remote-%d", p.seq)
	p.events = append(p.events, event.ProviderEvent{
		ID:          id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       event.EventTime{DateTime: start.Format(time.RFC3339)},
		End:         event.EventTime{DateTime: end.Format(time.RFC3339)},
	})
	p.Created = append(p.Created, ev)
	return id, nil
}

func (p *Provider) GetEvent(_ context.Context, id string) (event.ProviderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailGet[id]; err != nil {
		return event.ProviderEvent{}, err
	}
	for _, pe := range p.events {
		if pe.ID == id {
			return pe, nil
		}
	}
	return event.ProviderEvent{}, calsync.ErrNotFound
}

func (p *Provider) DeleteEvent(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailDelete[id]; err != nil {
		return err
	}
	for i, pe := range p.events {
		if pe.ID == id {
			p.events = append(p.events[:i], p.events[i+1:]...)
			return nil
		}
	}
	return calsync.ErrNotFound
}
