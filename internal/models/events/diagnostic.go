package events

import (
	"time"
)

// Diagnostic is the wire form of a diagnostic record published to the event stream.
type Diagnostic struct {
	EventID    string         `json:"event_id"`
	Message    string         `json:"message"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
