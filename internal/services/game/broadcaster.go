package game

import (
	"context"

	"github.com/mcoot/impostorgame/internal/model"
)

// Broadcaster delivers realtime events to the clients of a game
type Broadcaster interface {
	// BroadcastToGame sends an event to every client connected to the game
	BroadcastToGame(ctx context.Context, gameID model.GameID, name model.EventName, payload any)
	// SendToUser sends an event only to the given user's clients in the game
	SendToUser(ctx context.Context, gameID model.GameID, userID model.UserID, name model.EventName, payload any)
}
