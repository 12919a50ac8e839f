package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/impostorgame/internal/model"
)

// SentEvent is an event captured by MockBroadcaster
type SentEvent struct {
	GameID  model.GameID
	UserID  model.UserID // empty for game-wide broadcasts
	Name    model.EventName
	Payload any
}

// MockBroadcaster records every event it is asked to deliver
type MockBroadcaster struct {
	mu     sync.Mutex
	events []SentEvent
}

// NewMockBroadcaster creates an empty MockBroadcaster
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

// BroadcastToGame records a game-wide event
func (b *MockBroadcaster) BroadcastToGame(_ context.Context, gameID model.GameID, name model.EventName, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, SentEvent{GameID: gameID, Name: name, Payload: payload})
}

// SendToUser records a unicast event
func (b *MockBroadcaster) SendToUser(_ context.Context, gameID model.GameID, userID model.UserID, name model.EventName, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, SentEvent{GameID: gameID, UserID: userID, Name: name, Payload: payload})
}

// Events returns a copy of everything recorded so far
func (b *MockBroadcaster) Events() []SentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SentEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Named returns the recorded events with the given name, in order
func (b *MockBroadcaster) Named(name model.EventName) []SentEvent {
	var out []SentEvent
	for _, e := range b.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event with the given name
func (b *MockBroadcaster) Last(name model.EventName) (SentEvent, bool) {
	named := b.Named(name)
	if len(named) == 0 {
		return SentEvent{}, false
	}
	return named[len(named)-1], true
}

// Reset discards all recorded events
func (b *MockBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
