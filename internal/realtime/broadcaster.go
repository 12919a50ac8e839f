package realtime

import (
	"context"
	"log/slog"

	"github.com/mcoot/impostorgame/internal/model"
)

// Broadcaster delivers game events through the hub of each game
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "broadcaster")),
	}
}

// BroadcastToGame sends an event to every client of the game
func (b *Broadcaster) BroadcastToGame(ctx context.Context, gameID model.GameID, name model.EventName, payload any) {
	hub := b.hubManager.GetHub(gameID)
	if hub == nil {
		return
	}
	envelope, ok := b.envelope(gameID, name, payload)
	if !ok {
		return
	}
	hub.Broadcast(envelope)
}

// SendToUser sends an event to the given user's clients in the game
func (b *Broadcaster) SendToUser(ctx context.Context, gameID model.GameID, userID model.UserID, name model.EventName, payload any) {
	hub := b.hubManager.GetHub(gameID)
	if hub == nil {
		return
	}
	envelope, ok := b.envelope(gameID, name, payload)
	if !ok {
		return
	}
	hub.SendTo(userID, envelope)
}

func (b *Broadcaster) envelope(gameID model.GameID, name model.EventName, payload any) (Envelope, bool) {
	envelope, err := NewEnvelope(name, payload)
	if err != nil {
		b.logger.Error("failed to encode event",
			slog.String("game_id", string(gameID)),
			slog.String("event", string(name)),
			slog.Any("error", err))
		return Envelope{}, false
	}
	return envelope, true
}
