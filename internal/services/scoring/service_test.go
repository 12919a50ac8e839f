package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/impostorgame/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	service *Service
	players []model.PlayerID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.service = New()
	s.players = []model.PlayerID{"A", "B", "P", "Q", "X", "Y"}
}

func votes(pairs ...string) []Vote {
	out := make([]Vote, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Vote{Voter: model.PlayerID(pairs[i]), VotedFor: model.PlayerID(pairs[i+1])})
	}
	return out
}

// Tally tests

func (s *ServiceSuite) TestTallyCountsPerVotee() {
	tally := s.service.Tally(votes("A", "P", "B", "P", "X", "Q"))

	s.Equal(map[model.PlayerID]int{"P": 2, "Q": 1}, tally)
}

func (s *ServiceSuite) TestTallyEmpty() {
	s.Empty(s.service.Tally(nil))
}

// Outcome tests

func (s *ServiceSuite) TestImpostorUniquelyTopVotedIsCaught() {
	// P: 4 votes, Q: 1 vote
	result := s.service.ScoreRound("P", s.players, votes(
		"A", "P", "B", "P", "X", "P", "Y", "P", "P", "Q",
	))

	s.Equal(model.OutcomeCaught, result.Outcome)
	s.Equal([]model.PlayerID{"P"}, result.TopVoted)
	s.Equal(map[model.PlayerID]int{"A": 2, "B": 2, "Q": 2, "X": 2, "Y": 2}, result.Deltas)
	s.NotContains(result.Deltas, model.PlayerID("P"))
}

func (s *ServiceSuite) TestImpostorInTiedTopSetGainsOneAlone() {
	players := []model.PlayerID{"A", "B", "C", "D", "E", "F"}
	// A: 3 votes, B: 3 votes, impostor is A
	result := s.service.ScoreRound("A", players, votes(
		"B", "A", "C", "A", "D", "A", "A", "B", "E", "B", "F", "B",
	))

	s.Equal(model.OutcomeTied, result.Outcome)
	s.Equal([]model.PlayerID{"A", "B"}, result.TopVoted)
	s.Equal(map[model.PlayerID]int{"A": 1}, result.Deltas)
}

func (s *ServiceSuite) TestImpostorNotTopVotedEscapesAndRewardsCorrectVoters() {
	// Q: 3 votes, P: 2 votes from X and Y
	result := s.service.ScoreRound("P", s.players, votes(
		"A", "Q", "B", "Q", "P", "Q", "X", "P", "Y", "P",
	))

	s.Equal(model.OutcomeEscaped, result.Outcome)
	s.Equal([]model.PlayerID{"Q"}, result.TopVoted)
	s.Equal(map[model.PlayerID]int{"P": 2, "X": 1, "Y": 1}, result.Deltas)
}

func (s *ServiceSuite) TestZeroVotesImpostorEscapes() {
	result := s.service.ScoreRound("P", s.players, nil)

	s.Equal(model.OutcomeEscaped, result.Outcome)
	s.Empty(result.TopVoted)
	s.Empty(result.Tally)
	s.Equal(map[model.PlayerID]int{"P": 2}, result.Deltas)
}

func (s *ServiceSuite) TestTieWithoutImpostorEscapes() {
	// Q: 2, X: 2, P: 1
	result := s.service.ScoreRound("P", s.players, votes(
		"A", "Q", "B", "Q", "X", "X", "Y", "X", "Q", "P",
	))

	s.Equal(model.OutcomeEscaped, result.Outcome)
	s.Equal([]model.PlayerID{"Q", "X"}, result.TopVoted)
	s.Equal(map[model.PlayerID]int{"P": 2, "Q": 1}, result.Deltas)
}

func (s *ServiceSuite) TestSelfVoteCounts() {
	// The impostor votes for themselves and is the unique top votee
	result := s.service.ScoreRound("P", []model.PlayerID{"P", "Q"}, votes("P", "P"))

	s.Equal(model.OutcomeCaught, result.Outcome)
	s.Equal(map[model.PlayerID]int{"Q": 2}, result.Deltas)
}

func (s *ServiceSuite) TestSingleVoteForNonImpostor() {
	result := s.service.ScoreRound("P", []model.PlayerID{"P", "Q"}, votes("Q", "Q"))

	s.Equal(model.OutcomeEscaped, result.Outcome)
	s.Equal(map[model.PlayerID]int{"P": 2}, result.Deltas)
}

// Standings tests

func (s *ServiceSuite) TestStandingsSortDescendingKeepingJoinOrderOnTies() {
	now := time.Now()
	players := []*model.Player{
		{ID: "first", Score: 2, JoinedAt: now},
		{ID: "second", Score: 5, JoinedAt: now.Add(time.Second)},
		{ID: "third", Score: 2, JoinedAt: now.Add(2 * time.Second)},
		{ID: "fourth", Score: 0, JoinedAt: now.Add(3 * time.Second)},
	}

	standings := s.service.Standings(players)

	s.Equal([]model.PlayerID{"second", "first", "third", "fourth"}, model.PlayerIDs(standings))
	s.Equal(model.PlayerID("first"), players[0].ID, "input is not reordered")
}
