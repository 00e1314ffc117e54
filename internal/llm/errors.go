package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyResponse is returned when a provider answers with no content
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrCircuitOpen indicates that the circuit breaker rejected a request
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNoJSON is returned when a reply contains no JSON object
	ErrNoJSON = errors.New("no JSON object in model reply")
)

// ProviderError is an API failure reported by a provider
type ProviderError struct {
	Provider   string
	StatusCode int // 0 for transport failures
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient.
// Rate limits, server errors and transport failures are; other client errors are not.
func (e *ProviderError) IsRetryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func newProviderError(provider string, status int, err error) *ProviderError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: provider, StatusCode: status, Message: msg, Err: err}
}
