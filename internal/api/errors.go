package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned before any network call when no token is
// available for an endpoint that needs one.
var ErrUnauthenticated = errors.New("not authenticated: run \"leapadmin login\" or pass --token")

// UnreachableError reports a transport failure: connection refused, DNS
// failure, timeout, or a response body that could not be read.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("could not reach server at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a client-side timeout.
func (e *UnreachableError) Timeout() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned an error (status %d): %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsUnreachable reports whether err is a transport failure.
func IsUnreachable(err error) bool {
	var u *UnreachableError
	return errors.As(err, &u)
}

// genericMessage is used when the error body carries nothing readable.
func genericMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "request failed"
}

// newAPIError extracts the server's message from a JSON body of the form
// {"error": "..."} or {"message": "..."}.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		if s, ok := payload.Error.(string); ok && s != "" {
			msg = s
		} else if payload.Message != "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = genericMessage(status)
	}
	return &APIError{Status: status, Message: msg}
}
