package transport

import (
	"errors"
	"fmt"
)

// ErrInvalidURL is returned before any network activity when a URL's scheme
// is not http or https.
var ErrInvalidURL = errors.New("invalid URL: scheme must be http or https")

// MaxRetriesError is returned when a ranged request kept timing out until
// the retry budget ran out.
type MaxRetriesError struct {
	URL      string
	Attempts int
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("max retries exceeded after %d attempts: %s", e.Attempts, e.URL)
}

// PatternNotFoundError is returned when an expected textual marker is
// missing from a response body, e.g. the Segment-Count line of segment 0.
type PatternNotFoundError struct {
	Pattern string
	Where   string
}

func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("%s: could not find match for %s", e.Where, e.Pattern)
}

// StatusError carries a non-2xx response status. These propagate to the
// caller unmodified, the transport never retries them.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}
