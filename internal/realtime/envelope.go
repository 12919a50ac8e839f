// Package realtime delivers game events to connected clients over SSE and WebSocket.
package realtime

import (
	"encoding/json"
	"strings"

	"github.com/mcoot/impostorgame/internal/model"
)

// EventError is sent to a single WebSocket client whose action was rejected
const EventError model.EventName = "error"

// EventConnected is the first event written to every new stream
const EventConnected model.EventName = "connected"

// Envelope is the wire form of one event
type Envelope struct {
	Event model.EventName `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an Envelope
func NewEnvelope(name model.EventName, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: name, Data: data}, nil
}

// formatSSEMessage formats an SSE message with event name and data.
// Multi-line data gets a "data: " prefix on each line.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
