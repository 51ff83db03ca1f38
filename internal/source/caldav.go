package source

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/exec"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"calexport/internal/domain"
)

const hostHint = "ensure the calendar host is running and reachable, that the credentials are valid, or configure a launch command"

// CalDAVSource talks to a CalDAV calendar host. It implements Source.
type CalDAVSource struct {
	opts Options
}

// New creates a CalDAV source with defaults applied.
func New(opts Options) *CalDAVSource {
	return &CalDAVSource{opts: opts.withDefaults()}
}

// Handle is one live connection to the calendar host. It is single-owner:
// acquired by Connect, released exactly once by Close, never shared
// across concurrent fetches.
type Handle struct {
	client       *caldav.Client
	transport    *http.Transport
	principal    string
	calendarPath string
	closed       bool
}

// Connect attaches to an already-running calendar host, or launches one
// when attaching fails and a launch command is configured. Both paths are
// told apart in the logs and in the error mode, but a caller holding a
// handle cannot tell which one succeeded.
func (s *CalDAVSource) Connect(ctx context.Context) (*Handle, error) {
	h, err := s.attach(ctx)
	if err == nil {
		log.Printf("source: attached to running calendar host at %s", s.opts.BaseURL)
		return h, nil
	}

	if len(s.opts.LaunchCommand) == 0 {
		return nil, &ConnectionError{Mode: "attach", Hint: hostHint, Err: err}
	}

	log.Printf("source: attach failed (%v), launching calendar host: %v", err, s.opts.LaunchCommand)
	if lerr := s.launch(); lerr != nil {
		return nil, &ConnectionError{Mode: "launch", Hint: hostHint, Err: lerr}
	}

	deadline := time.Now().Add(s.opts.LaunchWait)
	for {
		select {
		case <-ctx.Done():
			return nil, &ConnectionError{Mode: "launch", Hint: hostHint, Err: ctx.Err()}
		case <-time.After(500 * time.Millisecond):
		}

		h, err = s.attach(ctx)
		if err == nil {
			log.Printf("source: launched calendar host and attached at %s", s.opts.BaseURL)
			return h, nil
		}
		if time.Now().After(deadline) {
			return nil, &ConnectionError{Mode: "launch", Hint: hostHint, Err: err}
		}
	}
}

// attach dials the host and performs the logon step (principal
// discovery). The handle owns its own transport so Close can release the
// connection pool deterministically.
func (s *CalDAVSource) attach(ctx context.Context) (*Handle, error) {
	transport := &http.Transport{}
	httpClient := &http.Client{
		Transport: &authTransport{
			username: s.opts.Username,
			password: s.opts.Password,
			base:     transport,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, s.opts.BaseURL)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, err
	}

	return &Handle{
		client:       client,
		transport:    transport,
		principal:    principal,
		calendarPath: s.opts.CalendarPath,
	}, nil
}

func (s *CalDAVSource) launch() error {
	cmd := exec.Command(s.opts.LaunchCommand[0], s.opts.LaunchCommand[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// The host outlives the handle; reap it only if it ever exits.
	go func() { _ = cmd.Wait() }()
	return nil
}

// FetchEvents enumerates the calendar container for the range, expands
// recurrences, applies the overlap filter and returns normalized events
// sorted ascending by start.
func (s *CalDAVSource) FetchEvents(ctx context.Context, h *Handle, rng domain.DateRange) ([]domain.CalendarEvent, error) {
	if h == nil || h.closed {
		return nil, &RetrievalError{Err: errors.New("calendar host handle is closed")}
	}
	if err := rng.Validate(); err != nil {
		return nil, &RetrievalError{Err: err}
	}

	winStart, winEnd := rng.Window(s.opts.Timezone)

	path, err := s.defaultCalendar(ctx, h)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: winStart,
					End:   winEnd,
				},
			},
		},
	}

	objects, err := h.client.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}

	// Enumerate under the item cap. A malformed or access-restricted item
	// is skipped, never fatal for the batch.
	var items []rawItem
	processed := 0
	skipped := 0
enumerate:
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			if processed >= s.opts.MaxItems {
				log.Printf("source: item cap %d reached, remaining items ignored", s.opts.MaxItems)
				break enumerate
			}
			processed++

			item, ok := parseItem(comp, s.opts.Timezone)
			if !ok {
				skipped++
				continue
			}
			items = append(items, item)
		}
	}
	if skipped > 0 {
		log.Printf("source: skipped %d malformed items", skipped)
	}

	// Recurrence expansion has to happen before any filter or sort;
	// filtering first silently drops recurring instances.
	occurrences := expandItems(items, winStart, winEnd, s.opts.MaxItems)

	return normalizeEvents(occurrences, winStart, winEnd, s.opts.MaxItems, s.opts.BodyLimit), nil
}

// normalizeEvents applies the overlap filter to expanded occurrences and
// returns normalized events sorted ascending by start, capped at
// maxItems.
func normalizeEvents(occurrences []rawItem, winStart, winEnd time.Time, maxItems, bodyLimit int) []domain.CalendarEvent {
	events := make([]domain.CalendarEvent, 0, len(occurrences))
	for _, it := range occurrences {
		ev := it.toEvent(bodyLimit)
		if !ev.Overlaps(winStart, winEnd) {
			continue
		}
		events = append(events, ev)
		if len(events) >= maxItems {
			log.Printf("source: item cap %d reached after expansion", maxItems)
			break
		}
	}

	domain.SortByStart(events)
	return events
}

// defaultCalendar resolves the calendar collection to enumerate: the
// configured path when set, otherwise the first calendar of the
// principal's home set. The resolved path is cached on the handle.
func (s *CalDAVSource) defaultCalendar(ctx context.Context, h *Handle) (string, error) {
	if h.calendarPath != "" {
		return h.calendarPath, nil
	}

	homeSet, err := h.client.FindCalendarHomeSet(ctx, h.principal)
	if err != nil {
		return "", err
	}

	calendars, err := h.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", err
	}
	if len(calendars) == 0 {
		return "", errors.New("calendar host has no calendars")
	}

	h.calendarPath = calendars[0].Path
	return h.calendarPath, nil
}

// Close releases the host-side resources held by the handle. Idempotent
// and safe on nil; it must be called exactly once per successful Connect,
// on error paths included.
func (s *CalDAVSource) Close(h *Handle) {
	if h == nil || h.closed {
		return
	}
	h.closed = true
	h.client = nil
	if h.transport != nil {
		h.transport.CloseIdleConnections()
		h.transport = nil
	}
}

// authTransport adds Basic Auth to requests when credentials are set.
type authTransport struct {
	username string
	password string
	base     *http.Transport
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	return t.base.RoundTrip(req)
}
