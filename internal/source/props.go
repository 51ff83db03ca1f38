package source

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"calexport/internal/domain"
)

// rawItem is one appointment as pulled off the host's automation surface,
// before normalization. Field lookups are defensive: a missing or broken
// property yields a zero value instead of failing the item, and only a
// missing start disqualifies the item entirely.
type rawItem struct {
	subject    string
	location   string
	organizer  string
	categories string
	body       string
	start      time.Time
	end        time.Time
	allDay     bool
	rrule      string
	exDates    []time.Time
}

// parseItem extracts a rawItem from a VEVENT component. The second return
// is false when the item is malformed beyond use.
func parseItem(comp *ical.Component, loc *time.Location) (rawItem, bool) {
	var it rawItem

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return it, false
	}
	start, err := startProp.DateTime(loc)
	if err != nil {
		return it, false
	}
	it.start = start
	it.allDay = startProp.Params.Get(ical.ParamValue) == string(ical.ValueDate)

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		if end, err := endProp.DateTime(loc); err == nil {
			it.end = end
		}
	}
	if it.end.IsZero() || it.end.Before(it.start) {
		if it.allDay {
			it.end = it.start.AddDate(0, 0, 1)
		} else {
			it.end = it.start
		}
	}

	it.subject = propText(comp, ical.PropSummary)
	it.location = propText(comp, ical.PropLocation)
	it.body = propText(comp, ical.PropDescription)
	it.categories = propText(comp, "CATEGORIES")
	it.organizer = trimMailto(propText(comp, "ORGANIZER"))

	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		it.rrule = p.Value
	}
	for _, p := range comp.Props["EXDATE"] {
		if t, err := p.DateTime(it.start.Location()); err == nil {
			it.exDates = append(it.exDates, t)
		}
	}

	return it, true
}

// propText reads a text property, empty on any failure.
func propText(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	if text, err := p.Text(); err == nil {
		return text
	}
	return p.Value
}

func trimMailto(s string) string {
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		return s[7:]
	}
	return s
}

// toEvent normalizes the raw item into the canonical event model.
func (it rawItem) toEvent(bodyLimit int) domain.CalendarEvent {
	return domain.CalendarEvent{
		Subject:    strings.TrimSpace(it.subject),
		Start:      it.start,
		End:        it.end,
		Location:   strings.TrimSpace(it.location),
		Organizer:  strings.TrimSpace(it.organizer),
		Categories: strings.TrimSpace(it.categories),
		Body:       domain.Truncate(it.body, bodyLimit),
		AllDay:     it.allDay,
	}
}
