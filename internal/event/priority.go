package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Priority orders flexible events during scheduling.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps the legacy numeric encoding 0/1/2 onto low/medium/high.
// Any other non-empty value is passed through unchanged; nil, false and the
// empty string give medium.
func ParsePriority(v any) Priority {
	switch p := v.(type) {
	case nil:
		return PriorityMedium
	case Priority:
		if p == "" {
			return PriorityMedium
		}
		return p
	case string:
		if strings.TrimSpace(p) == "" {
			return PriorityMedium
		}
		return Priority(p)
	case bool:
		if !p {
			return PriorityMedium
		}
		return Priority(strconv.FormatBool(p))
	case int:
		return fromNumber(float64(p))
	case int64:
		return fromNumber(float64(p))
	case float64:
		return fromNumber(p)
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return Priority(p.String())
		}
		return fromNumber(f)
	default:
		return Priority(fmt.Sprint(p))
	}
}

func fromNumber(f float64) Priority {
	switch f {
	case 0:
		return PriorityLow
	case 1:
		return PriorityMedium
	case 2:
		return PriorityHigh
	}
	return Priority(strconv.FormatFloat(f, 'f', -1, 64))
}

// Rank returns the sort weight of p. Unknown values rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// UnmarshalJSON accepts both the string and the legacy numeric form.
func (p *Priority) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("parse priority: %w", err)
	}
	*p = ParsePriority(raw)
	return nil
}
