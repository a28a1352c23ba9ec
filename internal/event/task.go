package event

// Task is the display projection of a Record.
type Task struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Fixed           bool     `json:"fixed"`
	Priority        Priority `json:"priority"`
	StartDate       string   `json:"start_date"`
	StartTime       string   `json:"start_time"`
	Duration        string   `json:"duration"`
	DurationMinutes int      `json:"durationMinutes"`
	Type            Purpose  `json:"type"`
	IsManual        bool     `json:"isManual"`
}
