// Package render turns an ordered event collection into a shareable
// document. Rendering is pure: the same events, format and timestamp
// always produce byte-identical output.
package render

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"calexport/internal/domain"
)

// BodyLimit bounds the details section of a single event in the rendered
// document. Independent of the source-level truncation: this limit
// governs what is visible in the document regardless of what the source
// already trimmed.
const BodyLimit = 500

// Render produces a document for the events in the requested format.
func Render(events []domain.CalendarEvent, format domain.Format, generatedAt time.Time) (domain.RenderedDocument, error) {
	var content string
	switch format {
	case domain.FormatMarkdown:
		content = renderMarkdown(events, generatedAt)
	case domain.FormatCSV:
		content = renderCSV(events)
	case domain.FormatPlainText:
		content = renderPlainText(events, generatedAt)
	default:
		return domain.RenderedDocument{}, fmt.Errorf("render: unknown format %q", format)
	}

	return domain.RenderedDocument{
		Format:      format,
		Content:     content,
		GeneratedAt: generatedAt,
	}, nil
}

func renderMarkdown(events []domain.CalendarEvent, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("# Calendar Events\n\n")
	fmt.Fprintf(&b, "**Export Date:** %s\n", generatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**Total Events:** %d\n\n", len(events))
	b.WriteString("---\n\n")

	for _, day := range groupByDay(events) {
		fmt.Fprintf(&b, "## %s\n\n", day.date.Format("Monday, January 02, 2006"))

		for _, evt := range day.events {
			fmt.Fprintf(&b, "### %s\n\n", evt.DisplayTitle())

			if evt.AllDay {
				b.WriteString("**Time:** All Day Event\n")
			} else {
				fmt.Fprintf(&b, "**Time:** %s - %s\n",
					evt.Start.Format("3:04 PM"), evt.End.Format("3:04 PM"))
			}
			if evt.Location != "" {
				fmt.Fprintf(&b, "**Location:** %s\n", evt.Location)
			}
			if evt.Organizer != "" {
				fmt.Fprintf(&b, "**Organizer:** %s\n", evt.Organizer)
			}
			if evt.Categories != "" {
				fmt.Fprintf(&b, "**Categories:** %s\n", evt.Categories)
			}
			if strings.TrimSpace(evt.Body) != "" {
				b.WriteString("\n**Details:**\n\n")
				b.WriteString(domain.Truncate(evt.Body, BodyLimit))
				b.WriteString("\n")
			}

			b.WriteString("\n---\n\n")
		}
	}

	b.WriteString("\n*Generated by calexport*\n")
	return b.String()
}

func renderCSV(events []domain.CalendarEvent) string {
	var b strings.Builder
	w := csv.NewWriter(&b)

	_ = w.Write([]string{
		"Subject", "Start Date", "Start Time", "End Date", "End Time",
		"Location", "Organizer", "Body",
	})
	for _, evt := range events {
		_ = w.Write([]string{
			evt.Subject,
			evt.Start.Format("2006-01-02"),
			evt.Start.Format("15:04"),
			evt.End.Format("2006-01-02"),
			evt.End.Format("15:04"),
			evt.Location,
			evt.Organizer,
			evt.Body,
		})
	}
	w.Flush()
	return b.String()
}

func renderPlainText(events []domain.CalendarEvent, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("CALENDAR EVENTS EXPORT\n")
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("============================================\n\n")

	for _, evt := range events {
		fmt.Fprintf(&b, "EVENT: %s\n", evt.DisplayTitle())
		fmt.Fprintf(&b, "WHEN:  %s | %s\n", evt.DisplayDate(), evt.DisplayTime())
		if evt.Location != "" {
			fmt.Fprintf(&b, "WHERE: %s\n", evt.Location)
		}
		if evt.Organizer != "" {
			fmt.Fprintf(&b, "WHO:   %s\n", evt.Organizer)
		}
		b.WriteString("--------------------------------------------\n")
		if body := domain.Truncate(evt.Body, BodyLimit); body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
		b.WriteString("============================================\n\n")
	}
	return b.String()
}

type dayGroup struct {
	date   time.Time
	events []domain.CalendarEvent
}

// groupByDay buckets events by calendar day, days ascending and events
// within a day ascending by start.
func groupByDay(events []domain.CalendarEvent) []dayGroup {
	byDay := make(map[time.Time][]domain.CalendarEvent)
	for _, evt := range events {
		day := time.Date(evt.Start.Year(), evt.Start.Month(), evt.Start.Day(), 0, 0, 0, 0, evt.Start.Location())
		byDay[day] = append(byDay[day], evt)
	}

	groups := make([]dayGroup, 0, len(byDay))
	for day, evts := range byDay {
		domain.SortByStart(evts)
		groups = append(groups, dayGroup{date: day, events: evts})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].date.Before(groups[j].date)
	})
	return groups
}
