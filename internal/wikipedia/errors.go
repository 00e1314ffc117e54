package wikipedia

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrPageNotFound is returned when no article has exactly the requested title
	ErrPageNotFound = errors.New("wikipedia page not found")

	// ErrNoReference is returned when none of the search terms resolved to an article
	ErrNoReference = errors.New("no wikipedia reference found")
)

// DisambiguationError is returned when the title names a disambiguation page
type DisambiguationError struct {
	Title   string
	Options []string // Linked article titles, in page order
}

func (e *DisambiguationError) Error() string {
	opts := e.Options
	if len(opts) > 5 {
		opts = opts[:5]
	}
	return fmt.Sprintf("%q is a disambiguation page (may refer to: %s)", e.Title, strings.Join(opts, ", "))
}

// StatusError is an unexpected HTTP status from the API
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wikipedia API returned %d for %s", e.StatusCode, e.URL)
}

// IsRetryable reports whether the status is transient
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// APIError is an error object in a MediaWiki API response body
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikipedia API error %s: %s", e.Code, e.Info)
}

// IsRetryable reports whether the API asked us to back off
func (e *APIError) IsRetryable() bool {
	return e.Code == "maxlag" || e.Code == "ratelimited" || e.Code == "readonly"
}
