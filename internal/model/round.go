package model

import "time"

// RoundID uniquely identifies a round
type RoundID string

// Role is the part a player plays in a round
type Role string

const (
	RoleOriginal Role = "ORIGINAL"
	RoleImpostor Role = "IMPOSTOR"
)

// RoundOutcome summarizes how the impostor fared in a round
type RoundOutcome string

const (
	OutcomeCaught  RoundOutcome = "CAUGHT"  // impostor was the unique top-voted player
	OutcomeTied    RoundOutcome = "TIED"    // impostor shared the top vote count
	OutcomeEscaped RoundOutcome = "ESCAPED" // impostor was not among the top-voted
)

// Round is one question, answer, vote and score cycle. Immutable once created.
type Round struct {
	ID               RoundID
	GameID           GameID
	Number           int // 1-based
	OriginalQuestion string
	ImpostorQuestion string
	ImpostorID       PlayerID
	CreatedAt        time.Time
}

// QuestionFor returns the role and question shown to the given player
func (r *Round) QuestionFor(playerID PlayerID) (Role, string) {
	if playerID == r.ImpostorID {
		return RoleImpostor, r.ImpostorQuestion
	}
	return RoleOriginal, r.OriginalQuestion
}

// Submission is a player's answer and vote for one round.
// Answer and vote are written independently; the latest write wins.
type Submission struct {
	RoundID   RoundID
	PlayerID  PlayerID
	Answer    *string
	VotedFor  *PlayerID
	UpdatedAt time.Time
}

// HasAnswer reports whether an answer was recorded
func (s *Submission) HasAnswer() bool {
	return s.Answer != nil
}

// HasVote reports whether a vote was recorded
func (s *Submission) HasVote() bool {
	return s.VotedFor != nil
}
