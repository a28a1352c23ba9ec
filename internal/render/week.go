// Package render draws the planned week as a terminal grid.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"

	"github.com/jima/gcal-planner/internal/event"
)

const occupied = "Occupied"

// Options control the grid layout.
type Options struct {
	FirstHour   int
	LastHour    int
	ColumnWidth int
}

func DefaultOptions() Options {
	return Options{FirstHour: 6, LastHour: 21, ColumnWidth: 24}
}

type cell struct {
	lines [2]string
	fixed bool
	start bool
}

// Week is a Monday-to-Sunday grid with one row per hour.
type Week struct {
	opts   Options
	monday time.Time
	loc    *time.Location
	cells  map[int]*cell // key: hour*7 + weekday index
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
	timeStyle   = lipgloss.NewStyle().Faint(true)
	fixedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cellStyle   = lipgloss.NewStyle()
)

// NewWeek returns an empty grid for the week containing day.
func NewWeek(day time.Time, loc *time.Location, opts Options) *Week {
	if opts.LastHour <= opts.FirstHour || opts.ColumnWidth <= 0 {
		opts = DefaultOptions()
	}
	day = day.In(loc)
	offset := (int(day.Weekday()) + 6) % 7
	monday := time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, loc)
	return &Week{opts: opts, monday: monday, loc: loc, cells: map[int]*cell{}}
}

// Monday returns the first day of the grid.
func (w *Week) Monday() time.Time { return w.monday }

// Add places r on the grid. Records without times or outside the week are
// ignored. A later record starting in the same hour replaces the earlier.
func (w *Week) Add(r event.Record) bool {
	if !r.Scheduled() {
		return false
	}
	start, end := r.Start.In(w.loc), r.End.In(w.loc)
	idx := w.dayIndex(start)
	if idx < 0 {
		return false
	}

	timeRange := start.Format("15:04") + "-" + end.Format("15:04")
	marks := strings.Repeat("+", r.Priority.Rank()+1)
	gap := w.opts.ColumnWidth - len(timeRange) - len(marks)

	c := &cell{fixed: r.Fixed, start: true}
	c.lines[0] = truncate.StringWithTail(r.Name, uint(w.opts.ColumnWidth), "…")
	c.lines[1] = timeRange + strings.Repeat(" ", max(gap, 1)) + marks
	if h := start.Hour(); w.inRange(h) {
		w.cells[h*7+idx] = c
	}

	for h := start.Hour() + 1; h <= w.opts.LastHour; h++ {
		if !time.Date(start.Year(), start.Month(), start.Day(), h, 0, 0, 0, w.loc).Before(end) {
			break
		}
		if !w.inRange(h) {
			continue
		}
		if prev, ok := w.cells[h*7+idx]; ok && prev.start {
			continue
		}
		w.cells[h*7+idx] = &cell{lines: [2]string{occupied, ""}, fixed: r.Fixed}
	}
	return true
}

// dayIndex compares calendar dates so daylight-saving days still match.
func (w *Week) dayIndex(t time.Time) int {
	y, m, d := t.Date()
	for i := 0; i < 7; i++ {
		dy, dm, dd := w.monday.AddDate(0, 0, i).Date()
		if y == dy && m == dm && d == dd {
			return i
		}
	}
	return -1
}

func (w *Week) inRange(h int) bool {
	return h >= w.opts.FirstHour && h <= w.opts.LastHour
}

// Render returns the titled grid.
func (w *Week) Render() string {
	headers := []string{"TIME"}
	for i := 0; i < 7; i++ {
		headers = append(headers, strings.ToUpper(w.monday.AddDate(0, 0, i).Format("Monday")))
	}

	var rows [][]string
	fixed := map[[2]int]bool{}
	for h := w.opts.FirstHour; h <= w.opts.LastHour; h++ {
		row := []string{fmt.Sprintf("%02d:00", h)}
		for d := 0; d < 7; d++ {
			text := "\n"
			if c, ok := w.cells[h*7+d]; ok {
				text = c.lines[0] + "\n" + c.lines[1]
				if c.fixed {
					fixed[[2]int{len(rows), d + 1}] = true
				}
			}
			row = append(row, text)
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(true).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Width(w.width(col))
			case col == 0:
				return timeStyle
			case fixed[[2]int{row, col}]:
				return fixedStyle.Width(w.opts.ColumnWidth)
			default:
				return cellStyle.Width(w.opts.ColumnWidth)
			}
		})

	grid := t.Render()
	title := fmt.Sprintf("WEEK FROM %s TO %s",
		w.monday.Format(time.DateOnly), w.monday.AddDate(0, 0, 6).Format(time.DateOnly))
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.PlaceHorizontal(lipgloss.Width(grid), lipgloss.Center, titleStyle.Render(title)),
		grid,
	)
}

func (w *Week) width(col int) int {
	if col == 0 {
		return 5
	}
	return w.opts.ColumnWidth
}

// RenderWeek draws records for the week containing day.
func RenderWeek(records []event.Record, day time.Time, loc *time.Location, opts Options) string {
	w := NewWeek(day, loc, opts)
	for _, r := range records {
		w.Add(r)
	}
	return w.Render()
}
