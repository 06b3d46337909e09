package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a non-success HTTP response from the upstream API.
type StatusError struct {
	// StatusCode is the HTTP status the upstream answered with.
	StatusCode int

	// Message is the upstream's error message, if it sent one.
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("API Error: %d - %s", e.StatusCode, msg)
}

// IsUnauthorized reports whether err carries an upstream 401 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
