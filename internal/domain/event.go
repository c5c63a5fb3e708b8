package domain

import (
	"context"
	"time"
)

// EventType classifies a reported event.
type EventType string

const (
	EventError       EventType = "ERROR"
	EventInfo        EventType = "INFO"
	EventOpportunity EventType = "OPPORTUNITY"
	EventExecuted    EventType = "EXECUTED"
)

// Event is an operator-facing record of something the bot did or failed to
// do. Strategy is the human-readable description of the best candidate.
type Event struct {
	ID       string
	Type     EventType
	Account  string
	Error    string
	Strategy string
	At       time.Time
}

// Reporter receives events. Implementations must not block the search for
// long and must not fail it.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}
