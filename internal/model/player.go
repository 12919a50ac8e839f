package model

import "time"

// UserID identifies a person independent of any particular game
type UserID string

// PlayerID identifies a user's participation in one game
type PlayerID string

// User is an identified (guest) participant who can create and join games
type User struct {
	ID          UserID
	DisplayName string
	CreatedAt   time.Time
}

// Player represents a user's membership of a game.
// There is at most one Player per (GameID, UserID).
type Player struct {
	ID          PlayerID
	GameID      GameID
	UserID      UserID
	DisplayName string
	Score       int  // cumulative, never decreases
	Active      bool // false while the player's connection is gone
	JoinedAt    time.Time
}

// PlayerIDs returns the IDs of the given players in order
func PlayerIDs(players []*Player) []PlayerID {
	ids := make([]PlayerID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

// FindPlayerByUser returns the player belonging to the user, or nil
func FindPlayerByUser(players []*Player, userID UserID) *Player {
	for _, p := range players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}
