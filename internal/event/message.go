package event

import (
	"encoding/json"
	"errors"
)

// Event names with special handling in the fanout path.
const (
	EventUpdate         = "update"
	EventStatusUpdate   = "status.update"
	EventKill           = "kill"
	EventFiltersChanged = "filters_changed"
)

// Message is one upstream pub/sub payload. Payload is kept raw: it is an
// object for most events and a bare string for deletes.
type Message struct {
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt int64           `json:"queued_at,omitempty"`
}

var errMissingEvent = errors.New("message has no event")

// Parse decodes a raw upstream message. The event name is required; the
// payload may be absent (system messages carry only an event).
func Parse(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.Event == "" {
		return nil, errMissingEvent
	}
	return &m, nil
}

// IsStatus reports whether the message carries a status that the filtering
// pipeline may need to inspect.
func (m *Message) IsStatus() bool {
	return m.Event == EventUpdate || m.Event == EventStatusUpdate
}

// PayloadText returns the payload as the string that goes on the wire:
// string payloads are unquoted, object payloads stay compact JSON.
func (m *Message) PayloadText() string {
	if len(m.Payload) == 0 {
		return ""
	}
	if m.Payload[0] == '"' {
		var s string
		if err := json.Unmarshal(m.Payload, &s); err == nil {
			return s
		}
	}
	return string(m.Payload)
}
