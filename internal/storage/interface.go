package storage

import (
	"context"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)

	// Game operations
	CreateGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error)
	UpdateGame(ctx context.Context, game *model.Game) error
	// ListActiveGames returns games not yet in a terminal phase, oldest first
	ListActiveGames(ctx context.Context) ([]*model.Game, error)

	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByUser(ctx context.Context, gameID model.GameID, userID model.UserID) (*model.Player, error)
	// ListPlayers returns a game's players in join order
	ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error)
	SetPlayerActive(ctx context.Context, id model.PlayerID, active bool) error
	// IncrementScores adds every delta to the matching player's score atomically
	IncrementScores(ctx context.Context, gameID model.GameID, deltas map[model.PlayerID]int) error

	// Round operations
	CreateRound(ctx context.Context, round *model.Round) error
	GetRound(ctx context.Context, gameID model.GameID, number int) (*model.Round, error)

	// Submission operations, upserted per (round, player)
	UpsertAnswer(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, answer string, at time.Time) error
	UpsertVote(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, votedFor model.PlayerID, at time.Time) error
	ListSubmissions(ctx context.Context, roundID model.RoundID) ([]*model.Submission, error)

	// Event log operations
	AppendEvent(ctx context.Context, event *model.GameEvent) error
	ListEvents(ctx context.Context, gameID model.GameID) ([]*model.GameEvent, error)

	// Atomically runs fn in a transactional scope: either every write made
	// through tx is applied or none is. Reads through tx may not observe
	// writes made earlier in the same scope.
	Atomically(ctx context.Context, fn func(tx Storage) error) error
}
