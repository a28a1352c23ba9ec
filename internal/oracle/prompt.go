package oracle

import (
	"bytes"
	"encoding/json"
	"sort"
	"text/template"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/schedule"
)

const systemPrompt = "You are a scheduling assistant. You return only valid JSON without any markdown formatting."

var responseSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"scheduled": {
			Type:        jsonschema.Array,
			Description: "One entry per event that was given a slot",
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"id": {
						Type:        jsonschema.String,
						Description: "The id of the event being scheduled, copied unchanged",
					},
					"start": {
						Type:        jsonschema.String,
						Description: "RFC 3339 start time with UTC offset, e.g. 2025-11-03T09:00:00-05:00",
					},
					"end": {
						Type:        jsonschema.String,
						Description: "RFC 3339 end time with UTC offset",
					},
				},
				Required:             []string{"id", "start", "end"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"scheduled"},
	AdditionalProperties: false,
}

type busyItem struct {
	Name     string `json:"name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration string `json:"duration"`
}

type pendingItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Priority     string `json:"priority"`
	Purpose      string `json:"purpose"`
	Duration     string `json:"duration"`
	Fixed        bool   `json:"fixed"`
	WeekdaysOnly bool   `json:"weekdaysOnly"`
}

type windowLine struct {
	Purpose string
	Window  string
}

type promptData struct {
	Today     string
	Zone      string
	Existing  string
	Pending   string
	Windows   []windowLine
	Preferred string
	BufferMin int
	Horizon   int
}

var promptTmpl = template.Must(template.New("prompt").Parse(`Schedule the following events.

Already scheduled events (cannot be moved or overlapped):
{{.Existing}}

Events to schedule:
{{.Pending}}

Rules:
1. Start from today: {{.Today}}. Do not schedule more than {{.Horizon}} days ahead.
2. Events must not overlap each other or any already scheduled event.
3. Timezone: {{.Zone}}. Every timestamp carries its UTC offset.
4. Higher priority events get better slots.
5. Events must fit within the hours of their purpose:
{{- range .Windows}}
   - {{.Purpose}}: {{.Window}}
{{- end}}
6. Fixed events already have times and are not rescheduled.
7. If weekdaysOnly is true, schedule the event Monday to Friday only.
8. Prefer {{.Preferred}} on weekdays. Higher priority events get slots in this band first; lower priority events may fall outside it.
9. Keep at least {{.BufferMin}} minutes between events.
10. Return each event's id unchanged. Event names may repeat; ids do not.

Return JSON only: {"scheduled":[{"id":"...","start":"2025-11-03T09:00:00-05:00","end":"2025-11-03T10:00:00-05:00"}]}`))

func buildPrompt(opts schedule.Options, fixed, requests []event.Record, ref time.Time) (string, error) {
	loc := opts.Location
	var existing []busyItem
	for _, r := range append(append([]event.Record(nil), fixed...), requests...) {
		if !r.Scheduled() {
			continue
		}
		existing = append(existing, busyItem{
			Name:     r.Name,
			Start:    r.Start.In(loc).Format(time.RFC3339),
			End:      r.End.In(loc).Format(time.RFC3339),
			Duration: event.Between(r.Start, r.End).String(),
		})
	}

	var pending []pendingItem
	for _, i := range schedulable(requests) {
		r := requests[i]
		pending = append(pending, pendingItem{
			ID:           r.ID,
			Name:         r.Name,
			Priority:     string(r.Priority),
			Purpose:      string(r.Purpose),
			Duration:     r.Duration.String(),
			Fixed:        r.Fixed,
			WeekdaysOnly: r.WeekdaysOnly,
		})
	}

	existingJSON, err := json.MarshalIndent(nonNil(existing), "", "  ")
	if err != nil {
		return "", err
	}
	pendingJSON, err := json.MarshalIndent(nonNil(pending), "", "  ")
	if err != nil {
		return "", err
	}

	var windows []windowLine
	for p, w := range opts.WorkingHours {
		windows = append(windows, windowLine{Purpose: string(p), Window: w.String()})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Purpose < windows[j].Purpose })

	data := promptData{
		Today:     ref.In(loc).Format(time.DateOnly),
		Zone:      loc.String(),
		Existing:  string(existingJSON),
		Pending:   string(pendingJSON),
		Windows:   windows,
		Preferred: opts.Preferred.String(),
		BufferMin: int(opts.Buffer / time.Minute),
		Horizon:   opts.HorizonDays,
	}
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
