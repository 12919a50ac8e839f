package redis

import (
	"fmt"

	"github.com/mcoot/impostorgame/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "impostor"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// gameKey returns the Redis key for a Game
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// gameCodeIndexKey returns the Redis key for the code -> game_id index
func gameCodeIndexKey(code model.GameCode) string {
	return fmt.Sprintf("%s:idx:game_code:%s", keyPrefix, code)
}

// activeGamesKey returns the Redis key for the SET of non-terminal game IDs
func activeGamesKey() string {
	return fmt.Sprintf("%s:idx:active_games", keyPrefix)
}

// playerKey returns the Redis key for a Player (score lives in scoresKey)
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// gamePlayersKey returns the Redis key for the LIST of player IDs in join order
func gamePlayersKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:game_players:%s", keyPrefix, gameID)
}

// playerByUserIndexKey returns the Redis key for the (game, user) -> player_id index
func playerByUserIndexKey(gameID model.GameID, userID model.UserID) string {
	return fmt.Sprintf("%s:idx:player_by_user:%s:%s", keyPrefix, gameID, userID)
}

// scoresKey returns the Redis key for the HASH of player_id -> score
func scoresKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:scores:%s", keyPrefix, gameID)
}

// roundKey returns the Redis key for a Round
func roundKey(gameID model.GameID, number int) string {
	return fmt.Sprintf("%s:round:%s:%d", keyPrefix, gameID, number)
}

// submissionsKey returns the Redis key for the HASH of a round's submission fields
func submissionsKey(roundID model.RoundID) string {
	return fmt.Sprintf("%s:submissions:%s", keyPrefix, roundID)
}

// eventsKey returns the Redis key for the LIST of a game's logged events
func eventsKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:events:%s", keyPrefix, gameID)
}

// Submission hash fields

func answerField(playerID model.PlayerID) string {
	return string(playerID) + ":answer"
}

func voteField(playerID model.PlayerID) string {
	return string(playerID) + ":vote"
}

func updatedAtField(playerID model.PlayerID) string {
	return string(playerID) + ":updated_at"
}
