package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoRefreshToken         = errors.New("no refresh token cached")
	ErrInvalidRefreshResponse = errors.New("refresh token response invalid")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message())
}

// Message is what should be shown to a user: the backend answers errors
// with plain text, so the body wins over the generic status text.
func (e *StatusError) Message() string {
	if msg := strings.TrimSpace(string(e.Body)); msg != "" {
		return msg
	}
	return http.StatusText(e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// UserMessage extracts a display message from any client error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message()
	}
	return err.Error()
}
