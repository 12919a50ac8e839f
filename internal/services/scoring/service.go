package scoring

import (
	"sort"

	"github.com/mcoot/impostorgame/internal/model"
)

const (
	// CaughtPoints is awarded to every non-impostor when the impostor is the sole top-voted player
	CaughtPoints = 2
	// TiedPoints is awarded to the impostor when they share the top vote count
	TiedPoints = 1
	// EscapedPoints is awarded to the impostor when they avoid the top vote
	EscapedPoints = 2
	// CorrectVotePoints is awarded to each voter who named the impostor in an escaped round
	CorrectVotePoints = 1
)

// Vote is a single ballot cast in a round
type Vote struct {
	Voter    model.PlayerID
	VotedFor model.PlayerID
}

// RoundScore is the outcome of scoring one round
type RoundScore struct {
	Outcome model.RoundOutcome
	// Tally counts votes received per player; players with no votes are absent
	Tally map[model.PlayerID]int
	// TopVoted holds the players with the highest vote count, sorted by ID
	TopVoted []model.PlayerID
	// Deltas holds only the non-zero score changes
	Deltas map[model.PlayerID]int
}

// Service provides scoring for completed rounds
type Service struct{}

// New creates a new scoring Service
func New() *Service {
	return &Service{}
}

// Tally counts votes per votee
func (s *Service) Tally(votes []Vote) map[model.PlayerID]int {
	tally := make(map[model.PlayerID]int)
	for _, v := range votes {
		tally[v.VotedFor]++
	}
	return tally
}

// ScoreRound applies the round scoring rules to the final votes of a round
func (s *Service) ScoreRound(impostor model.PlayerID, players []model.PlayerID, votes []Vote) RoundScore {
	tally := s.Tally(votes)
	top := topVoted(tally)

	result := RoundScore{
		Tally:    tally,
		TopVoted: top,
		Deltas:   make(map[model.PlayerID]int),
	}

	impostorOnTop := false
	for _, id := range top {
		if id == impostor {
			impostorOnTop = true
			break
		}
	}

	switch {
	case impostorOnTop && len(top) == 1:
		result.Outcome = model.OutcomeCaught
		for _, id := range players {
			if id != impostor {
				result.Deltas[id] += CaughtPoints
			}
		}
	case impostorOnTop:
		result.Outcome = model.OutcomeTied
		result.Deltas[impostor] += TiedPoints
	default:
		result.Outcome = model.OutcomeEscaped
		result.Deltas[impostor] += EscapedPoints
		for _, v := range votes {
			if v.VotedFor == impostor {
				result.Deltas[v.Voter] += CorrectVotePoints
			}
		}
	}

	return result
}

// topVoted returns the votees sharing the maximum count, or nil when nobody voted
func topVoted(tally map[model.PlayerID]int) []model.PlayerID {
	maxVotes := 0
	for _, n := range tally {
		if n > maxVotes {
			maxVotes = n
		}
	}
	if maxVotes == 0 {
		return nil
	}

	var top []model.PlayerID
	for id, n := range tally {
		if n == maxVotes {
			top = append(top, id)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i] < top[j] })
	return top
}

// Standings returns players ordered by score descending; equal scores keep join order
func (s *Service) Standings(players []*model.Player) []*model.Player {
	sorted := make([]*model.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// Interface for dependency injection
type ServiceInterface interface {
	Tally(votes []Vote) map[model.PlayerID]int
	ScoreRound(impostor model.PlayerID, players []model.PlayerID, votes []Vote) RoundScore
	Standings(players []*model.Player) []*model.Player
}

var _ ServiceInterface = (*Service)(nil)
