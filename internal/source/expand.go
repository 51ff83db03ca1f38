package source

import (
	"log"
	"time"

	"github.com/teambition/rrule-go"
)

// expandItems materializes concrete occurrences for every item. Recurring
// items are expanded against the window here, before the caller filters
// or sorts anything; doing it the other way around drops recurring
// instances whose master sits outside the window.
func expandItems(items []rawItem, winStart, winEnd time.Time, maxOccurrences int) []rawItem {
	out := make([]rawItem, 0, len(items))
	for _, it := range items {
		if it.rrule == "" {
			out = append(out, it)
			continue
		}
		out = append(out, expandRecurring(it, winStart, winEnd, maxOccurrences)...)
	}
	return out
}

func expandRecurring(it rawItem, winStart, winEnd time.Time, maxOccurrences int) []rawItem {
	r, err := rrule.StrToRRule(it.rrule)
	if err != nil {
		// Unparseable rule: keep the base occurrence rather than losing
		// the appointment entirely.
		log.Printf("source: bad RRULE %q, keeping base occurrence: %v", it.rrule, err)
		return []rawItem{it}
	}
	r.DTStart(it.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range it.exDates {
		set.ExDate(ex.In(it.start.Location()))
	}

	duration := it.end.Sub(it.start)

	// Widen the lower bound by the duration so an occurrence that starts
	// before the window but still overlaps it is materialized.
	from := winStart.Add(-duration).In(it.start.Location())
	to := winEnd.In(it.start.Location())

	times := set.Between(from, to, true)
	if len(times) > maxOccurrences {
		log.Printf("source: recurrence cap %d reached for %q", maxOccurrences, it.subject)
		times = times[:maxOccurrences]
	}

	occurrences := make([]rawItem, 0, len(times))
	for _, start := range times {
		occ := it
		occ.start = start
		occ.end = start.Add(duration)
		occ.rrule = ""
		occ.exDates = nil
		occurrences = append(occurrences, occ)
	}
	return occurrences
}
