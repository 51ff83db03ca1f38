package anthropic

import "fmt"

// fileObject is the slice of the Files API response we need. Success is
// defined by the presence of the file id, nothing else.
type fileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size_bytes"`
}

// UploadError is a failed upload attempt: a transport failure, a
// non-success HTTP status, or a success response missing the file id.
// Body keeps the raw response for diagnostics; callers decide whether the
// user ever sees it verbatim.
type UploadError struct {
	Status int
	Body   string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload: %v", e.Err)
	}
	return fmt.Sprintf("upload: API returned %d: %s", e.Status, e.Body)
}

func (e *UploadError) Unwrap() error { return e.Err }
