package factory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/realtime"
	"github.com/mcoot/impostorgame/internal/services/auth"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context

	alice *auth.Session
	bob   *auth.Session
	cara  *auth.Session
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()

	// Sessions draw from the sequential fallback IDs
	s.alice = s.guest("Alice")
	s.bob = s.guest("Bob")
	s.cara = s.guest("Cara")
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

func (s *IntegrationSuite) guest(name string) *auth.Session {
	session, err := s.app.AuthService.CreateGuest(s.ctx, name)
	s.Require().NoError(err)
	return session
}

// lobby creates a game for alice and seats bob and cara
func (s *IntegrationSuite) lobby(rounds int) *model.Game {
	s.app.MockRandom.QueueString("LOBBY2")
	s.app.MockRandom.QueueID("game-1", "p-alice", "p-bob", "p-cara")

	game, _, err := s.app.GameController.CreateGame(s.ctx, &s.alice.User, rounds)
	s.Require().NoError(err)
	_, _, err = s.app.GameController.JoinGame(s.ctx, "lobby2", &s.bob.User)
	s.Require().NoError(err)
	_, _, err = s.app.GameController.JoinGame(s.ctx, "LOBBY2", &s.cara.User)
	s.Require().NoError(err)
	return game
}

// await reads from the client until the named event arrives
func (s *IntegrationSuite) await(client *realtime.Client, name model.EventName) realtime.Envelope {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-client.Messages():
			s.Require().True(ok, "client closed before %s", name)
			if env.Event == name {
				return env
			}
		case <-timeout:
			s.FailNow("timed out waiting for event", string(name))
		}
	}
}

// Test: a single round from lobby to game over, observed through a realtime client
func (s *IntegrationSuite) TestCompleteGameFlow() {
	game := s.lobby(1)

	hub := s.app.HubManager.GetOrCreateHub(game.ID)
	client := realtime.NewClient(s.cara.UserID)
	s.Equal(1, hub.Register(client))

	_, err := s.app.GameController.StartGame(s.ctx, "LOBBY2", s.alice.UserID)
	s.Require().NoError(err)
	s.await(client, model.EventGameStarted)

	// Bob is the impostor
	s.app.MockRandom.QueueIntn(1)
	s.app.MockRandom.QueueID("round-1")
	round, err := s.app.GameController.SubmitQuestions(s.ctx, "LOBBY2", s.alice.UserID, "Best pizza topping?", "Worst pizza topping?")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p-bob"), round.ImpostorID)

	env := s.await(client, model.EventNewRound)
	var newRound model.NewRoundPayload
	s.Require().NoError(json.Unmarshal(env.Data, &newRound))
	s.Equal(model.RoleOriginal, newRound.Role)
	s.Equal("Best pizza topping?", newRound.Question)

	s.Require().NoError(s.app.GameController.SubmitAnswer(s.ctx, "LOBBY2", s.alice.UserID, "Basil"))
	s.Require().NoError(s.app.GameController.SubmitAnswer(s.ctx, "LOBBY2", s.bob.UserID, "Pineapple"))
	s.Require().NoError(s.app.GameController.SubmitAnswer(s.ctx, "LOBBY2", s.cara.UserID, "Mushroom"))

	s.app.MockClock.Advance(60 * time.Second)
	env = s.await(client, model.EventVotingPhase)
	var voting model.VotingPhasePayload
	s.Require().NoError(json.Unmarshal(env.Data, &voting))
	s.Len(voting.Answers, 3)
	s.Equal("Basil", voting.Answers[0].Answer)

	s.Require().NoError(s.app.GameController.SubmitVote(s.ctx, "LOBBY2", s.alice.UserID, "p-bob"))
	s.Require().NoError(s.app.GameController.SubmitVote(s.ctx, "LOBBY2", s.cara.UserID, "p-bob"))
	s.Require().NoError(s.app.GameController.SubmitVote(s.ctx, "LOBBY2", s.bob.UserID, "p-alice"))

	s.app.MockClock.Advance(180 * time.Second)

	env = s.await(client, model.EventRoundResult)
	var result model.RoundResultPayload
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Equal(model.OutcomeCaught, result.Outcome)
	s.Equal(map[model.PlayerID]int{"p-alice": 2, "p-cara": 2}, result.Deltas)

	env = s.await(client, model.EventGameOver)
	var over model.GameOverPayload
	s.Require().NoError(json.Unmarshal(env.Data, &over))
	s.Require().Len(over.FinalScores, 3)
	s.Equal(0, over.FinalScores[2].Score)
	s.Equal("Bob", over.FinalScores[2].Player.DisplayName)

	stored, err := s.app.Storage.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseGameOver, stored.Phase)
	s.Equal(0, s.app.Scheduler.Len())

	events, err := s.app.GameController.ListEvents(s.ctx, "LOBBY2")
	s.Require().NoError(err)
	s.Equal(model.EventGameOver, events[len(events)-1].Name)
}

// Test: a two round game passes through ROUND_END and back to QUESTION_INPUT
func (s *IntegrationSuite) TestMultiRoundGame() {
	s.lobby(2)
	_, err := s.app.GameController.StartGame(s.ctx, "LOBBY2", s.alice.UserID)
	s.Require().NoError(err)

	s.app.MockRandom.QueueIntn(0)
	s.app.MockRandom.QueueID("round-1")
	_, err = s.app.GameController.SubmitQuestions(s.ctx, "LOBBY2", s.alice.UserID, "Q1", "Q1 impostor")
	s.Require().NoError(err)

	// Nobody answers or votes: the impostor escapes
	s.app.MockClock.Advance(60 * time.Second)
	s.app.MockClock.Advance(180 * time.Second)

	view, err := s.app.GameController.GetGameView(s.ctx, "LOBBY2", s.bob.UserID)
	s.Require().NoError(err)
	s.Equal(model.PhaseRoundEnd, view.Game.Phase)

	s.app.MockClock.Advance(5 * time.Second)

	view, err = s.app.GameController.GetGameView(s.ctx, "LOBBY2", s.alice.UserID)
	s.Require().NoError(err)
	s.Equal(model.PhaseQuestionInput, view.Game.Phase)
	s.Equal(1, view.Game.CurrentRound)

	alice, err := s.app.Storage.GetPlayer(s.ctx, "p-alice")
	s.Require().NoError(err)
	s.Equal(2, alice.Score)
}

// Test: restarting the controller picks up a running window from storage
func (s *IntegrationSuite) TestRecoveryAfterRestart() {
	game := s.lobby(1)
	_, err := s.app.GameController.StartGame(s.ctx, "LOBBY2", s.alice.UserID)
	s.Require().NoError(err)
	s.app.MockRandom.QueueIntn(2)
	s.app.MockRandom.QueueID("round-1")
	_, err = s.app.GameController.SubmitQuestions(s.ctx, "LOBBY2", s.alice.UserID, "Q", "Q'")
	s.Require().NoError(err)
	s.app.MockClock.Advance(20 * time.Second)
	s.app.GameController.Shutdown()

	restarted := NewTestAppWithStorage(s.app.Storage)
	restarted.MockClock.Set(s.app.MockClock.Now())
	defer restarted.Close()

	recovered, err := restarted.GameController.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, recovered)

	restarted.MockClock.Advance(39 * time.Second)
	stored, err := restarted.Storage.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseAnswering, stored.Phase)

	restarted.MockClock.Advance(time.Second)
	stored, err = restarted.Storage.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseVoting, stored.Phase)
}
