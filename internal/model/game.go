package model

import (
	"strings"
	"time"
)

// GameID uniquely identifies a game
type GameID string

// GameCode is the short human-shareable join code for a game
type GameCode string

// Game code generation settings
const (
	GameCodeLength   = 6
	GameCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NormalizeGameCode upper-cases and trims a user supplied join code
func NormalizeGameCode(code string) GameCode {
	return GameCode(strings.ToUpper(strings.TrimSpace(code)))
}

// Phase represents the current stage of a game's state machine
type Phase string

const (
	PhaseLobby         Phase = "LOBBY"          // Waiting for players to join
	PhaseQuestionInput Phase = "QUESTION_INPUT" // Admin is writing the question pair
	PhaseAnswering     Phase = "ANSWERING"      // Answer window is open
	PhaseVoting        Phase = "VOTING"         // Vote window is open
	PhaseScoring       Phase = "SCORING"        // Votes closed, applying scores
	PhaseRoundEnd      Phase = "ROUND_END"      // Short pause before the next round
	PhaseGameOver      Phase = "GAME_OVER"      // All rounds played
	PhaseAbandoned     Phase = "ABANDONED"      // Admin ended the game early
)

var phaseTransitions = map[Phase][]Phase{
	PhaseLobby:         {PhaseQuestionInput, PhaseAbandoned},
	PhaseQuestionInput: {PhaseAnswering, PhaseAbandoned},
	PhaseAnswering:     {PhaseVoting, PhaseAbandoned},
	PhaseVoting:        {PhaseScoring, PhaseAbandoned},
	PhaseScoring:       {PhaseRoundEnd, PhaseGameOver, PhaseAbandoned},
	PhaseRoundEnd:      {PhaseQuestionInput, PhaseAbandoned},
}

// CanTransitionTo reports whether next is a single legal step from p
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true once no further transitions are possible
func (p Phase) IsTerminal() bool {
	return p == PhaseGameOver || p == PhaseAbandoned
}

// IsTimed returns true for phases that end when a scheduled window expires
func (p Phase) IsTimed() bool {
	return p == PhaseAnswering || p == PhaseVoting || p == PhaseRoundEnd
}

// Game represents one session of the impostor game spanning several rounds
type Game struct {
	ID           GameID
	Code         GameCode
	AdminID      UserID
	TotalRounds  int
	CurrentRound int // 0 until the first round is created
	Phase        Phase

	// PhaseEndsAt is the deadline of the pending timed window, if any.
	// Persisted so timers can be re-armed after a restart.
	PhaseEndsAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user created this game
func (g *Game) IsAdmin(userID UserID) bool {
	return g.AdminID == userID
}

// RoundsRemaining returns true if another round can be played
func (g *Game) RoundsRemaining() bool {
	return g.CurrentRound < g.TotalRounds
}

// Advance returns a copy of the game moved to the next phase, or
// ErrWrongPhase if next is not a legal step from the current phase.
func (g *Game) Advance(next Phase, now time.Time, endsAt *time.Time) (*Game, error) {
	if !g.Phase.CanTransitionTo(next) {
		return nil, ErrWrongPhase
	}
	cp := *g
	cp.Phase = next
	cp.PhaseEndsAt = endsAt
	cp.UpdatedAt = now
	return &cp, nil
}
