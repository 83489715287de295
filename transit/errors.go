package transit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingAction is returned when a balanced REQUEST carries no action name.
	ErrMissingAction = errors.New("transit: request packet has no action")

	// ErrMissingEvent is returned when a grouped EVENT carries no event name.
	ErrMissingEvent = errors.New("transit: grouped event packet has no event name")

	// ErrNoHandler is returned when a subscriber is built without a message handler.
	ErrNoHandler = errors.New("transit: no message handler configured")
)

// PublishError represents a publish operation failure.
type PublishError struct {
	Exchange   string    // Target exchange, empty for direct queue sends
	RoutingKey string    // Routing key or queue name
	Err        error     // Underlying error
	Timestamp  time.Time // When the error occurred
}

func (e *PublishError) Error() string {
	if e.Exchange == "" {
		return fmt.Sprintf("transit publish error: failed to send to queue %s: %v", e.RoutingKey, e.Err)
	}
	return fmt.Sprintf("transit publish error: failed to publish to %s/%s: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumerError represents a subscribe operation failure.
type ConsumerError struct {
	Queue     string    // Queue name
	Op        string    // Operation that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("transit consumer error: %s failed on queue %s: %v", e.Op, e.Queue, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// TopologyError represents a declare or bind failure.
type TopologyError struct {
	Component string    // "queue", "exchange" or "binding"
	Name      string    // Component name
	Op        string    // Operation that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("transit topology error: failed to %s %s %q: %v", e.Op, e.Component, e.Name, e.Err)
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}
