package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	gcal "github.com/jima/gcal-planner"
	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/planner"
	"github.com/jima/gcal-planner/internal/schedule"
	"github.com/jima/gcal-planner/internal/store"
)

// Error codes beyond the calendar client's.
const (
	ErrInvalidInput = "invalid_input"
	ErrStoreError   = "store_error"
	ErrNoSyncRecord = "no_sync_record"
)

var errInvalidInput = errors.New("invalid input")

// Response is the JSON output of every command.
type Response struct {
	Success  bool   `json:"success"`
	LastSync string `json:"lastSync,omitempty"` // ISO8601
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`   // machine-readable code
	Message  string `json:"message,omitempty"` // human-readable
}

// NewErrorResponse creates a structured error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error:   code,
		Message: message,
	}
}

// NewSuccessResponse creates a successful response carrying data
func NewSuccessResponse(data any, message string) Response {
	return Response{
		Success:  true,
		LastSync: time.Now().Format(time.RFC3339),
		Data:     data,
		Message:  message,
	}
}

func writeResponse(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// errorCode classifies err for the response envelope.
func errorCode(err error) string {
	var (
		netErr  net.Error
		pathErr *fs.PathError
		msg     = err.Error()
	)
	switch {
	case errors.Is(err, planner.ErrNoProvider), strings.Contains(msg, gcal.ErrNotConfigured):
		return gcal.ErrNotConfigured
	case strings.Contains(msg, gcal.ErrTokenExpired):
		return gcal.ErrTokenExpired
	case errors.Is(err, errInvalidInput),
		errors.Is(err, event.ErrInvalidInput),
		errors.Is(err, event.ErrInvalidDuration),
		errors.Is(err, planner.ErrInvalidRange):
		return ErrInvalidInput
	case errors.Is(err, store.ErrNoSyncRecord):
		return ErrNoSyncRecord
	case errors.As(err, &netErr):
		return gcal.ErrNetworkError
	case errors.As(err, &pathErr):
		return ErrStoreError
	default:
		return gcal.ErrAPIError
	}
}

// readInput decodes the JSON file at path into v. "-" reads stdin.
func readInput(path string, stdin io.Reader, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", errInvalidInput, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse %s: %v", errInvalidInput, path, err)
	}
	return nil
}

// parseDay reads YYYY-MM-DD in loc; empty means today.
func parseDay(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", errInvalidInput, s, err)
	}
	return day, nil
}

// parseRange builds a one-purpose TimeRanges from flag values.
func parseRange(purpose, start, end string) (event.Purpose, schedule.Window, error) {
	w, err := schedule.NewWindow(start, end)
	if err != nil {
		return "", schedule.Window{}, fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return event.ParsePurpose(purpose), w, nil
}
