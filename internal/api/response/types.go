package response

import (
	"encoding/json"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/services/auth"
	"github.com/mcoot/impostorgame/internal/services/game"
)

// User represents an identified user in API responses
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:          string(u.ID),
		DisplayName: u.DisplayName,
	}
}

// SessionResponse is the response for session endpoints
type SessionResponse struct {
	User         User      `json:"user"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionFromAuth creates a SessionResponse from a session
func SessionFromAuth(s *auth.Session) SessionResponse {
	return SessionResponse{
		User:         UserFromModel(&s.User),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Player represents a seat in a game
type Player struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Active      bool   `json:"active"`
	IsAdmin     bool   `json:"is_admin"`
}

// PlayerFromModel converts a model.Player; adminID marks the game admin
func PlayerFromModel(p *model.Player, adminID model.UserID) Player {
	return Player{
		ID:          string(p.ID),
		UserID:      string(p.UserID),
		DisplayName: p.DisplayName,
		Score:       p.Score,
		Active:      p.Active,
		IsAdmin:     p.UserID == adminID,
	}
}

// Game represents the public state of a game
type Game struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	AdminID      string     `json:"admin_id"`
	Phase        string     `json:"phase"`
	TotalRounds  int        `json:"total_rounds"`
	CurrentRound int        `json:"current_round"`
	PhaseEndsAt  *time.Time `json:"phase_ends_at"`
}

// GameFromModel converts a model.Game
func GameFromModel(g *model.Game) Game {
	return Game{
		ID:           string(g.ID),
		Code:         string(g.Code),
		AdminID:      string(g.AdminID),
		Phase:        string(g.Phase),
		TotalRounds:  g.TotalRounds,
		CurrentRound: g.CurrentRound,
		PhaseEndsAt:  g.PhaseEndsAt,
	}
}

// JoinResponse is returned when creating or joining a game
type JoinResponse struct {
	Game   Game   `json:"game"`
	Player Player `json:"player"`
}

// JoinFromModel builds a JoinResponse
func JoinFromModel(g *model.Game, p *model.Player) JoinResponse {
	return JoinResponse{
		Game:   GameFromModel(g),
		Player: PlayerFromModel(p, g.AdminID),
	}
}

// Answer is one player's answer shown during voting
type Answer struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Answer      string `json:"answer"`
}

// Round is the current round from the caller's point of view
type Round struct {
	Number   int      `json:"number"`
	Role     string   `json:"role"`
	Question string   `json:"question"`
	Answered bool     `json:"answered"`
	Voted    bool     `json:"voted"`
	Answers  []Answer `json:"answers,omitempty"`
}

// GameState is the full view of a game for one user
type GameState struct {
	Game    Game     `json:"game"`
	Players []Player `json:"players"`
	Self    *Player  `json:"self,omitempty"`
	Round   *Round   `json:"round,omitempty"`
}

// GameStateFromView converts a game.GameView
func GameStateFromView(v *game.GameView) GameState {
	players := make([]Player, len(v.Players))
	for i, p := range v.Players {
		players[i] = PlayerFromModel(p, v.Game.AdminID)
	}

	state := GameState{
		Game:    GameFromModel(v.Game),
		Players: players,
	}
	if v.Self != nil {
		self := PlayerFromModel(v.Self, v.Game.AdminID)
		state.Self = &self
	}
	if v.Round != nil {
		round := &Round{
			Number:   v.Round.Number,
			Role:     string(v.Round.Role),
			Question: v.Round.Question,
			Answered: v.Round.Answered,
			Voted:    v.Round.Voted,
		}
		for _, a := range v.Round.Answers {
			round.Answers = append(round.Answers, Answer{
				PlayerID:    string(a.Player.ID),
				DisplayName: a.Player.DisplayName,
				Answer:      a.Answer,
			})
		}
		state.Round = round
	}
	return state
}

// RoundStarted is returned to the admin after submitting questions.
// The impostor is not revealed.
type RoundStarted struct {
	Number int        `json:"number"`
	Phase  string     `json:"phase"`
	EndsAt *time.Time `json:"ends_at"`
}

// RoundStartedFromModel builds a RoundStarted from the round and the game after the transition
func RoundStartedFromModel(r *model.Round, g *model.Game) RoundStarted {
	return RoundStarted{
		Number: r.Number,
		Phase:  string(g.Phase),
		EndsAt: g.PhaseEndsAt,
	}
}

// Event is one entry of a game's event log
type Event struct {
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventLog lists a game's broadcast events, oldest first
type EventLog struct {
	Events []Event `json:"events"`
}

// EventLogFromModel converts stored game events
func EventLogFromModel(events []*model.GameEvent) EventLog {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = Event{
			Name:      string(e.Name),
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		}
	}
	return EventLog{Events: out}
}
