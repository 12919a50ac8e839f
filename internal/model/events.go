package model

import (
	"encoding/json"
	"time"
)

// EventName identifies a realtime event sent to clients
type EventName string

const (
	EventPlayerUpdate   EventName = "playerUpdate"
	EventGameStarted    EventName = "gameStarted"
	EventNewRound       EventName = "newRound" // unicast, role dependent
	EventVotingPhase    EventName = "votingPhase"
	EventVoteReceived   EventName = "voteReceived"
	EventRoundResult    EventName = "roundResult"
	EventNextRoundReady EventName = "nextRoundReady"
	EventGameOver       EventName = "gameOver"
	EventGameAbandoned  EventName = "gameAbandoned"
)

// GameEvent is an entry in a game's append-only event log
type GameEvent struct {
	GameID    GameID
	Name      EventName
	Payload   json.RawMessage
	CreatedAt time.Time
}

// NewGameEvent marshals payload into a log entry
func NewGameEvent(gameID GameID, name EventName, payload any, at time.Time) (*GameEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &GameEvent{
		GameID:    gameID,
		Name:      name,
		Payload:   data,
		CreatedAt: at,
	}, nil
}

// PlayerSummary is the public view of a player included in event payloads
type PlayerSummary struct {
	ID          PlayerID `json:"id"`
	UserID      UserID   `json:"userId"`
	DisplayName string   `json:"displayName"`
	Score       int      `json:"score"`
	Active      bool     `json:"active"`
}

// SummarizePlayer converts a Player to its public view
func SummarizePlayer(p *Player) PlayerSummary {
	return PlayerSummary{
		ID:          p.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Score:       p.Score,
		Active:      p.Active,
	}
}

// SummarizePlayers converts players to their public views, preserving order
func SummarizePlayers(players []*Player) []PlayerSummary {
	out := make([]PlayerSummary, len(players))
	for i, p := range players {
		out[i] = SummarizePlayer(p)
	}
	return out
}

// ScoreEntry is one line of a scoreboard
type ScoreEntry struct {
	Player PlayerSummary `json:"player"`
	Score  int           `json:"score"`
}

// PlayerUpdatePayload carries the current roster
type PlayerUpdatePayload struct {
	Players []PlayerSummary `json:"players"`
}

// GameStartedPayload is sent when the admin starts the game
type GameStartedPayload struct {
	GameCode    GameCode `json:"gameCode"`
	TotalRounds int      `json:"totalRounds"`
}

// NewRoundPayload tells one player their role and question
type NewRoundPayload struct {
	RoundNumber int       `json:"roundNumber"`
	Role        Role      `json:"role"`
	Question    string    `json:"question"`
	EndsAt      time.Time `json:"endsAt"`
}

// AnswerEntry pairs a player with their answer
type AnswerEntry struct {
	Player PlayerSummary `json:"player"`
	Answer string        `json:"answer"`
}

// VotingPhasePayload lists every answer given in the round
type VotingPhasePayload struct {
	RoundNumber int           `json:"roundNumber"`
	Answers     []AnswerEntry `json:"answers"`
	EndsAt      time.Time     `json:"endsAt"`
}

// VoteReceivedPayload announces a vote and the running tally
type VoteReceivedPayload struct {
	RoundNumber int              `json:"roundNumber"`
	Voter       PlayerID         `json:"voter"`
	VotedFor    PlayerID         `json:"votedFor"`
	Tally       map[PlayerID]int `json:"tally"`
}

// RoundResultPayload reveals the impostor and the updated scores
type RoundResultPayload struct {
	RoundNumber      int              `json:"roundNumber"`
	Impostor         PlayerSummary    `json:"impostor"`
	OriginalQuestion string           `json:"originalQuestion"`
	ImpostorQuestion string           `json:"impostorQuestion"`
	Outcome          RoundOutcome     `json:"outcome"`
	Tally            map[PlayerID]int `json:"tally"`
	Deltas           map[PlayerID]int `json:"deltas"`
	Scores           []ScoreEntry     `json:"scores"`
}

// NextRoundReadyPayload is sent when the game returns to QUESTION_INPUT.
// The admin additionally receives a copy with AwaitingQuestions set.
type NextRoundReadyPayload struct {
	RoundNumber       int  `json:"roundNumber"`
	AwaitingQuestions bool `json:"awaitingQuestions"`
}

// GameOverPayload carries the final scoreboard, highest score first
type GameOverPayload struct {
	FinalScores []ScoreEntry `json:"finalScores"`
	Abandoned   bool         `json:"abandoned,omitempty"`
}
