package domain

import "time"

// Format selects the rendered document flavor.
type Format string

const (
	FormatMarkdown  Format = "markdown"
	FormatCSV       Format = "csv"
	FormatPlainText Format = "text"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatMarkdown, FormatCSV, FormatPlainText:
		return Format(s), true
	}
	return "", false
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatPlainText:
		return "txt"
	default:
		return "md"
	}
}

// ContentType returns the media type used when uploading a document of
// this format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPlainText:
		return "text/plain"
	default:
		return "text/markdown"
	}
}

// RenderedDocument is a document derived from an event set. It is built
// on demand and never persisted beyond the upload that consumes it.
type RenderedDocument struct {
	Format      Format
	Content     string
	GeneratedAt time.Time
}
