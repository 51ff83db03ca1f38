package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CalendarEvent is one appointment fetched from the calendar host.
// Events are built fresh on every fetch and carry no identity across
// fetches. Selected is a UI annotation and not part of the event's value.
type CalendarEvent struct {
	Subject    string
	Start      time.Time
	End        time.Time
	Location   string
	Organizer  string
	Categories string
	Body       string
	AllDay     bool
	Selected   bool
}

// DisplayTitle returns the subject, falling back when it is empty.
func (e *CalendarEvent) DisplayTitle() string {
	if e.Subject == "" {
		return "(No Subject)"
	}
	return e.Subject
}

// DisplayTime returns the time span for display.
func (e *CalendarEvent) DisplayTime() string {
	if e.AllDay {
		return "All Day"
	}
	return e.Start.Format("3:04 PM") + " - " + e.End.Format("3:04 PM")
}

// DisplayDate returns the start date for display.
func (e *CalendarEvent) DisplayDate() string {
	return e.Start.Format("Mon, Jan 02")
}

// Overlaps reports whether the event intersects the half-open window
// [windowStart, windowEnd). Any intersection counts; full containment is
// not required, so multi-day and all-day events spanning the window edges
// are still included.
func (e *CalendarEvent) Overlaps(windowStart, windowEnd time.Time) bool {
	return e.Start.Before(windowEnd) && !e.End.Before(windowStart)
}

// SortByStart orders events ascending by start time, in place.
func SortByStart(events []CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}

// DateRange is a user-selected date span, inclusive on both ends at day
// granularity.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate checks that the range is well-formed.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("date range is not set")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("range end %s is before start %s",
			r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))
	}
	return nil
}

// Window converts the inclusive day range into a precise half-open
// timestamp window [start 00:00, end+1d 00:00) in the given location.
func (r DateRange) Window(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, loc)
	end := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return start, end
}

// Truncate trims surrounding whitespace and hard-limits the text to limit
// runes, appending "..." when anything was cut. Texts at or under the
// limit come back unchanged apart from the trim.
func Truncate(text string, limit int) string {
	cleaned := strings.TrimSpace(text)
	if limit <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	return string(runes[:limit]) + "..."
}
