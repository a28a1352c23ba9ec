package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jima/gcal-planner/internal/event"
)

// IDGenerator assigns local ids of the form manual_<unix ms>_<index>_<random>.
// The index keeps ids unique within one batch even when the clock and the
// random source repeat.
type IDGenerator struct {
	Now    func() time.Time
	Random func() string
}

// NewIDGenerator returns a generator backed by the wall clock and uuid.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		Now: time.Now,
		Random: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		},
	}
}

// Assign returns a copy of batch where every record without an id has a
// fresh manual id.
func (g *IDGenerator) Assign(batch []event.Record) []event.Record {
	out := make([]event.Record, len(batch))
	copy(out, batch)

	ms := g.Now().UnixMilli()
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		out[i].ID = fmt.Sprintf("%s%d_%d_%s", event.ManualPrefix, ms, i, g.Random())
	}
	return out
}
