package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrNotConnected is returned when the connection is not established.
	ErrNotConnected = errors.New("rabbitmq: not connected")

	// ErrConnectionTimeout is returned when the dial exceeds the timeout.
	ErrConnectionTimeout = errors.New("rabbitmq: connection timeout")
)

// ConnectionError represents a connection-level failure.
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SanitizeURL removes credentials from connection URLs before they reach logs.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
