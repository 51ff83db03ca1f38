package source

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"calexport/internal/domain"
)

func newVEvent(subject string, start, end time.Time) *ical.Component {
	ve := ical.NewEvent()
	ve.Props.SetText(ical.PropUID, subject+"@test")
	ve.Props.SetText(ical.PropSummary, subject)
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end)
	return ve.Component
}

func TestParseItemFields(t *testing.T) {
	start := time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	comp := newVEvent("Review", start, end)
	comp.Props.SetText(ical.PropLocation, "Room B")
	comp.Props.SetText(ical.PropDescription, "  agenda follows  ")
	comp.Props.SetText("ORGANIZER", "mailto:boss@example.com")
	comp.Props.SetText("CATEGORIES", "work")

	it, ok := parseItem(comp, time.UTC)
	if !ok {
		t.Fatal("parseItem rejected a well-formed item")
	}

	if it.subject != "Review" {
		t.Errorf("subject = %q", it.subject)
	}
	if !it.start.Equal(start) || !it.end.Equal(end) {
		t.Errorf("times = %v..%v, want %v..%v", it.start, it.end, start, end)
	}
	if it.location != "Room B" {
		t.Errorf("location = %q", it.location)
	}
	if it.organizer != "boss@example.com" {
		t.Errorf("organizer = %q, mailto prefix should be stripped", it.organizer)
	}
	if it.categories != "work" {
		t.Errorf("categories = %q", it.categories)
	}
	if it.allDay {
		t.Error("timed event flagged all-day")
	}
}

func TestParseItemMissingStart(t *testing.T) {
	ve := ical.NewEvent()
	ve.Props.SetText(ical.PropSummary, "broken")

	if _, ok := parseItem(ve.Component, time.UTC); ok {
		t.Error("item without DTSTART should be rejected")
	}
}

func TestParseItemDefaultsEnd(t *testing.T) {
	start := time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC)
	ve := ical.NewEvent()
	ve.Props.SetText(ical.PropSummary, "open ended")
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)

	it, ok := parseItem(ve.Component, time.UTC)
	if !ok {
		t.Fatal("parseItem rejected item with only DTSTART")
	}
	if !it.end.Equal(start) {
		t.Errorf("end = %v, want start %v", it.end, start)
	}
	if it.end.Before(it.start) {
		t.Error("invariant start <= end violated")
	}
}

func TestParseItemAllDay(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	ve := ical.NewEvent()
	ve.Props.SetText(ical.PropSummary, "offsite")
	ve.Props.SetDate(ical.PropDateTimeStart, day)

	it, ok := parseItem(ve.Component, time.UTC)
	if !ok {
		t.Fatal("parseItem rejected all-day item")
	}
	if !it.allDay {
		t.Error("DATE-valued DTSTART should mark the item all-day")
	}
	if !it.end.Equal(day.AddDate(0, 0, 1)) {
		t.Errorf("all-day end = %v, want next midnight", it.end)
	}
}

func TestToEventTruncatesBody(t *testing.T) {
	it := rawItem{
		subject: "long",
		start:   time.Now(),
		end:     time.Now(),
		body:    strings.Repeat("b", 1500),
	}

	ev := it.toEvent(1000)
	if len([]rune(ev.Body)) != 1003 {
		t.Errorf("body length = %d runes, want 1000 + marker", len([]rune(ev.Body)))
	}
	if !strings.HasSuffix(ev.Body, "...") {
		t.Error("truncated body should end with marker")
	}

	short := rawItem{subject: "short", start: time.Now(), end: time.Now(), body: "fine"}
	if ev := short.toEvent(1000); ev.Body != "fine" {
		t.Errorf("body under the limit changed: %q", ev.Body)
	}
}

// TestExpandBeforeFilter covers the ordering constraint: a weekly series
// whose master starts long before the window must still contribute the
// occurrences that fall inside it.
func TestExpandBeforeFilter(t *testing.T) {
	loc := time.UTC
	masterStart := time.Date(2023, 11, 6, 9, 0, 0, 0, loc) // a Monday
	winStart := time.Date(2024, 1, 8, 0, 0, 0, 0, loc)     // also a Monday
	winEnd := winStart.AddDate(0, 0, 7)

	items := []rawItem{{
		subject: "weekly standup",
		start:   masterStart,
		end:     masterStart.Add(30 * time.Minute),
		rrule:   "FREQ=WEEKLY",
	}}

	occurrences := expandItems(items, winStart, winEnd, DefaultMaxItems)

	var inWindow int
	for _, occ := range occurrences {
		ev := occ.toEvent(DefaultBodyLimit)
		if ev.Overlaps(winStart, winEnd) {
			inWindow++
			if ev.Start.Weekday() != time.Monday {
				t.Errorf("occurrence on %v, want Monday", ev.Start.Weekday())
			}
		}
	}
	if inWindow != 1 {
		t.Errorf("got %d occurrences in window, want 1", inWindow)
	}
}

func TestExpandRespectsExDates(t *testing.T) {
	loc := time.UTC
	start := time.Date(2024, 1, 8, 9, 0, 0, 0, loc)
	winStart := time.Date(2024, 1, 8, 0, 0, 0, 0, loc)
	winEnd := winStart.AddDate(0, 0, 7)

	items := []rawItem{{
		subject: "daily",
		start:   start,
		end:     start.Add(time.Hour),
		rrule:   "FREQ=DAILY;COUNT=7",
		exDates: []time.Time{start.AddDate(0, 0, 2)},
	}}

	occurrences := expandItems(items, winStart, winEnd, DefaultMaxItems)
	if len(occurrences) != 6 {
		t.Errorf("got %d occurrences, want 6 (one excluded)", len(occurrences))
	}
	for _, occ := range occurrences {
		if occ.start.Equal(start.AddDate(0, 0, 2)) {
			t.Error("excluded date still materialized")
		}
	}
}

func TestExpandCapsOccurrences(t *testing.T) {
	loc := time.UTC
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, loc)
	winStart := start
	winEnd := start.AddDate(1, 0, 0)

	items := []rawItem{{
		subject: "runaway",
		start:   start,
		end:     start.Add(time.Hour),
		rrule:   "FREQ=DAILY",
	}}

	occurrences := expandItems(items, winStart, winEnd, 10)
	if len(occurrences) != 10 {
		t.Errorf("got %d occurrences, want cap of 10", len(occurrences))
	}
}

func TestExpandKeepsNonRecurring(t *testing.T) {
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	items := []rawItem{{subject: "single", start: start, end: start.Add(time.Hour)}}

	occurrences := expandItems(items, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1), DefaultMaxItems)
	if len(occurrences) != 1 || occurrences[0].subject != "single" {
		t.Fatalf("non-recurring item mangled: %+v", occurrences)
	}
}

func TestExpandBadRRuleKeepsBase(t *testing.T) {
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	items := []rawItem{{subject: "odd", start: start, end: start.Add(time.Hour), rrule: "FREQ=NONSENSE"}}

	occurrences := expandItems(items, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1), DefaultMaxItems)
	if len(occurrences) != 1 {
		t.Fatalf("got %d occurrences, want the base kept", len(occurrences))
	}
}

// TestNormalizeEventsProperty checks the inclusion rule over random
// appointment sets against a reference predicate: exactly the items
// whose interval overlaps the window come back, sorted by start.
func TestNormalizeEventsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	winStart := base.AddDate(0, 0, 7)
	winEnd := base.AddDate(0, 0, 14)

	for trial := 0; trial < 50; trial++ {
		var items []rawItem
		wantIncluded := 0
		for i := 0; i < 40; i++ {
			start := base.Add(time.Duration(rng.Intn(21*24)) * time.Hour)
			end := start.Add(time.Duration(rng.Intn(48)) * time.Hour)
			items = append(items, rawItem{subject: "e", start: start, end: end})

			if start.Before(winEnd) && !end.Before(winStart) {
				wantIncluded++
			}
		}

		events := normalizeEvents(items, winStart, winEnd, DefaultMaxItems, DefaultBodyLimit)

		if len(events) != wantIncluded {
			t.Fatalf("trial %d: got %d events, reference predicate says %d", trial, len(events), wantIncluded)
		}
		for i := 1; i < len(events); i++ {
			if events[i].Start.Before(events[i-1].Start) {
				t.Fatalf("trial %d: events not sorted ascending by start", trial)
			}
		}
		for _, ev := range events {
			if !ev.Overlaps(winStart, winEnd) {
				t.Fatalf("trial %d: non-overlapping event included: %v..%v", trial, ev.Start, ev.End)
			}
		}
	}
}

func TestNormalizeEventsCap(t *testing.T) {
	base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	var items []rawItem
	for i := 0; i < 30; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		items = append(items, rawItem{subject: "e", start: start, end: start.Add(time.Minute)})
	}

	events := normalizeEvents(items, base.AddDate(0, 0, -1), base.AddDate(0, 0, 7), 10, DefaultBodyLimit)
	if len(events) != 10 {
		t.Errorf("got %d events, want cap of 10", len(events))
	}
}

func TestCloseIdempotent(t *testing.T) {
	s := New(Options{BaseURL: "http://localhost:5232"})

	s.Close(nil) // must not panic

	h := &Handle{}
	s.Close(h)
	s.Close(h) // second close is a no-op
	if !h.closed {
		t.Error("handle not marked closed")
	}
}

func TestFetchEventsClosedHandle(t *testing.T) {
	s := New(Options{BaseURL: "http://localhost:5232"})
	rng := domain.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	h := &Handle{closed: true}
	_, err := s.FetchEvents(context.Background(), h, rng)

	var retrievalErr *RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("err = %v, want RetrievalError", err)
	}
}

func TestFetchEventsInvalidRange(t *testing.T) {
	s := New(Options{BaseURL: "http://localhost:5232"})
	rng := domain.DateRange{
		Start: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	_, err := s.FetchEvents(context.Background(), &Handle{}, rng)

	var retrievalErr *RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("err = %v, want RetrievalError", err)
	}
}

func TestConnectErrorHasHint(t *testing.T) {
	// Unreachable port, no launch command: attach must fail with a
	// remediation hint and the attach mode.
	s := New(Options{BaseURL: "http://127.0.0.1:1", LaunchWait: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.Connect(ctx)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want ConnectionError", err)
	}
	if connErr.Mode != "attach" {
		t.Errorf("mode = %q, want attach", connErr.Mode)
	}
	if !strings.Contains(connErr.Error(), "ensure the calendar host") {
		t.Errorf("error lacks remediation hint: %v", connErr)
	}
}
