package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned for durations that are not strictly positive
// or cannot be parsed.
var ErrInvalidDuration = errors.New("duration must be a positive HH:MM value")

// Duration is a length of time with minute precision, rendered as HH:MM.
type Duration int

// Minutes returns a Duration of n minutes.
func Minutes(n int) Duration { return Duration(n) }

// Between returns end-start floored to whole minutes. A negative span gives 0.
func Between(start, end time.Time) Duration {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return Duration(d / time.Minute)
}

// ParseDuration parses "H:MM" or "HH:MM". Hours may exceed 23.
func ParseDuration(s string) (Duration, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins < 0 || mins > 59 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return Duration(hours*60 + mins), nil
}

func (d Duration) Minutes() int { return int(d) }

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) * time.Minute }

func (d Duration) String() string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads the HH:MM form. An empty string is a zero duration.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
