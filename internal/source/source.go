package source

import (
	"context"
	"fmt"
	"time"

	"calexport/internal/domain"
)

// Source acquires a connection to the external calendar host and returns
// normalized, range-filtered events. A handle is owned by exactly one
// Connect/Close pair; every fetch acquires a fresh handle rather than
// reusing one, so no host-side state leaks between runs.
type Source interface {
	Connect(ctx context.Context) (*Handle, error)
	FetchEvents(ctx context.Context, h *Handle, rng domain.DateRange) ([]domain.CalendarEvent, error)
	Close(h *Handle)
}

const (
	// DefaultMaxItems bounds the number of items processed per fetch. A
	// safety valve against large or corrupted calendars, not a feature.
	DefaultMaxItems = 500

	// DefaultBodyLimit bounds appointment body text so rendered documents
	// and upload payloads stay bounded regardless of pathological bodies.
	DefaultBodyLimit = 1000

	defaultLaunchWait = 15 * time.Second
)

// Options configures the CalDAV source.
type Options struct {
	// BaseURL is the calendar host endpoint, e.g. a local Radicale or
	// Baikal instance.
	BaseURL  string
	Username string
	Password string

	// CalendarPath pins a specific calendar collection. When empty the
	// host's default (first discovered) calendar is used.
	CalendarPath string

	// LaunchCommand, when set, is started if attaching to a running host
	// fails. The launched process is left running after Close, the same
	// way the host would be left open had the user started it.
	LaunchCommand []string

	// LaunchWait is how long Connect polls a freshly launched host before
	// giving up.
	LaunchWait time.Duration

	// MaxItems caps items processed per fetch. Zero means DefaultMaxItems.
	MaxItems int

	// BodyLimit caps body text length in runes. Zero means DefaultBodyLimit.
	BodyLimit int

	// Timezone is the location day boundaries are computed in. Nil means
	// time.Local.
	Timezone *time.Location
}

func (o Options) withDefaults() Options {
	if o.LaunchWait <= 0 {
		o.LaunchWait = defaultLaunchWait
	}
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	if o.BodyLimit <= 0 {
		o.BodyLimit = DefaultBodyLimit
	}
	if o.Timezone == nil {
		o.Timezone = time.Local
	}
	return o
}

// ConnectionError means the calendar host could not be reached at all.
// Terminal for the fetch; the user has to fix the environment.
type ConnectionError struct {
	Mode string // "attach" or "launch"
	Hint string
	Err  error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("connect to calendar host (%s): %v", e.Mode, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RetrievalError means a batch-level enumeration failure. Per-item
// failures are absorbed during enumeration and never surface as this.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve calendar events: %v", e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
