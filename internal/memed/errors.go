package memed

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrValidation marks failures detected locally, before any request is sent.
var ErrValidation = errors.New("memed: validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Error describes a failed call to the gateway: either a non-2xx response or a
// transport failure (StatusCode == 0, Err set).
type Error struct {
	StatusCode  int
	Status      string // status text, e.g. "Unprocessable Entity"
	Method      string
	URL         string
	RequestBody string
	// Response is the decoded JSON body, or the raw text when it is not JSON.
	Response any
	Body     []byte
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("memed: %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("memed: HTTP %d %s", e.StatusCode, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Network reports whether the request never produced an HTTP response.
func (e *Error) Network() bool { return e.StatusCode == 0 }

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
