package domain

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestDisplayTitleFallback(t *testing.T) {
	e := CalendarEvent{}
	if got := e.DisplayTitle(); got != "(No Subject)" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "(No Subject)")
	}

	e.Subject = "Standup"
	if got := e.DisplayTitle(); got != "Standup" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "Standup")
	}
}

func TestDisplayTimeAllDay(t *testing.T) {
	e := CalendarEvent{AllDay: true}
	if got := e.DisplayTime(); got != "All Day" {
		t.Errorf("DisplayTime() = %q, want %q", got, "All Day")
	}
}

// TestOverlapsProperty checks the inclusion rule against a reference
// predicate over randomly generated intervals: an event is in the window
// exactly when its interval intersects it, full containment not required.
func TestOverlapsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	winStart := base.AddDate(0, 0, 10)
	winEnd := base.AddDate(0, 0, 17) // half-open

	for i := 0; i < 1000; i++ {
		start := base.Add(time.Duration(rng.Intn(30*24)) * time.Hour)
		end := start.Add(time.Duration(rng.Intn(72)) * time.Hour)

		e := CalendarEvent{Start: start, End: end}

		// Reference: intervals intersect when neither lies fully on one
		// side of the other.
		want := start.Before(winEnd) && !end.Before(winStart)
		if got := e.Overlaps(winStart, winEnd); got != want {
			t.Fatalf("Overlaps(%v..%v in %v..%v) = %v, want %v",
				start, end, winStart, winEnd, got, want)
		}
	}
}

func TestOverlapsEdges(t *testing.T) {
	loc := time.UTC
	winStart := time.Date(2024, 1, 10, 0, 0, 0, 0, loc)
	winEnd := time.Date(2024, 1, 17, 0, 0, 0, 0, loc)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"fully inside", winStart.Add(time.Hour), winStart.Add(2 * time.Hour), true},
		{"spans entire window", winStart.AddDate(0, 0, -5), winEnd.AddDate(0, 0, 5), true},
		{"ends at window start", winStart.AddDate(0, 0, -1), winStart, true},
		{"starts at window end", winEnd, winEnd.Add(time.Hour), false},
		{"before window", winStart.AddDate(0, 0, -3), winStart.Add(-time.Second), false},
		{"after window", winEnd.Add(time.Second), winEnd.AddDate(0, 0, 2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := CalendarEvent{Start: tt.start, End: tt.end}
			if got := e.Overlaps(winStart, winEnd); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortByStart(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []CalendarEvent{
		{Subject: "c", Start: base.Add(2 * time.Hour)},
		{Subject: "a", Start: base},
		{Subject: "b", Start: base.Add(time.Hour)},
	}

	SortByStart(events)

	for i, want := range []string{"a", "b", "c"} {
		if events[i].Subject != want {
			t.Errorf("events[%d].Subject = %q, want %q", i, events[i].Subject, want)
		}
	}
}

func TestDateRangeWindow(t *testing.T) {
	loc := time.UTC
	r := DateRange{
		Start: time.Date(2024, 1, 10, 15, 30, 0, 0, loc),
		End:   time.Date(2024, 1, 12, 8, 0, 0, 0, loc),
	}

	start, end := r.Window(loc)

	if want := time.Date(2024, 1, 10, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Errorf("window start = %v, want %v", start, want)
	}
	// Inclusive end day: the window extends to the next midnight.
	if want := time.Date(2024, 1, 13, 0, 0, 0, 0, loc); !end.Equal(want) {
		t.Errorf("window end = %v, want %v", end, want)
	}
}

func TestDateRangeValidate(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	if err := (DateRange{Start: day, End: day}).Validate(); err != nil {
		t.Errorf("same-day range should be valid: %v", err)
	}
	if err := (DateRange{Start: day, End: day.AddDate(0, 0, -1)}).Validate(); err == nil {
		t.Error("inverted range should be invalid")
	}
	if err := (DateRange{}).Validate(); err == nil {
		t.Error("zero range should be invalid")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit untouched", "short", 10, "short"},
		{"at limit untouched", "exactly10!", 10, "exactly10!"},
		{"over limit marked", strings.Repeat("x", 15), 10, strings.Repeat("x", 10) + "..."},
		{"whitespace trimmed", "  padded  ", 10, "padded"},
		{"multibyte runes", strings.Repeat("é", 12), 10, strings.Repeat("é", 10) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
