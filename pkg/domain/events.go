package domain

import "time"

// EventKind tags an inbound push event.
type EventKind string

const (
	EventCreate EventKind = "CREATE"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	EventQuery  EventKind = "QUERY"
)

// StateRequest is the literal message sent on the state channel to receive
// the full current graph as a burst of CREATE events.
const StateRequest = "get_state"

// Event is one message from the state push channel.
//
// Data is kept undecoded: its shape discriminates the payload. A "Type" key
// marks a block, anything else is a connection.
type Event struct {
	Kind EventKind      `json:"Type"`
	ID   string         `json:"Id,omitempty"`
	Data map[string]any `json:"Data"`
}

// IsNode reports whether the payload describes a block.
func (e Event) IsNode() bool {
	_, ok := e.Data["Type"]
	return ok
}

// LogBatch is one message from the log push channel.
type LogBatch struct {
	Log []LogEntry `json:"Log"`
}

// LogEntry is a single line of the visual log panel.
type LogEntry struct {
	Type string    `json:"Type"`
	Data any       `json:"Data"`
	ID   string    `json:"Id"`
	Time time.Time `json:"Time"`
}

// LogTypeUI marks log entries produced by the editor itself (connection status).
const LogTypeUI = "UI"
