package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/impostorgame/internal/dependencies/mocks"
	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/services/scheduler"
	"github.com/mcoot/impostorgame/internal/services/scoring"
	"github.com/mcoot/impostorgame/internal/storage/memory"
	"github.com/mcoot/impostorgame/internal/testutil"
)

const testCode = "ABC234"

type ControllerSuite struct {
	suite.Suite
	storage     *memory.Storage
	faults      *storeFaults
	clock       *mocks.MockClock
	random      *mocks.MockRandom
	broadcaster *mocks.MockBroadcaster
	scheduler   *scheduler.Scheduler
	controller  *Controller
	ctx         context.Context
	start       time.Time

	admin *model.User
	bob   *model.User
	cara  *model.User
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.start = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.storage = memory.New()
	s.faults = &storeFaults{}
	s.clock = mocks.NewMockClock(s.start)
	s.random = mocks.NewMockRandom()
	s.broadcaster = mocks.NewMockBroadcaster()
	s.scheduler = scheduler.New(s.clock, testutil.NopLogger())
	s.controller = s.newController(s.scheduler)
	s.ctx = context.Background()

	s.admin = &model.User{ID: "u-admin", DisplayName: "Alice"}
	s.bob = &model.User{ID: "u-bob", DisplayName: "Bob"}
	s.cara = &model.User{ID: "u-cara", DisplayName: "Cara"}
}

func (s *ControllerSuite) newController(sched *scheduler.Scheduler) *Controller {
	return NewController(
		&faultyStorage{Storage: s.storage, faults: s.faults},
		scoring.New(),
		sched,
		s.broadcaster,
		s.clock,
		s.random,
		DefaultTimings(),
		testutil.NopLogger(),
	)
}

// Helpers

func (s *ControllerSuite) createGame(rounds int) *model.Game {
	s.random.QueueString(testCode)
	s.random.QueueID("game-1", "p-admin")
	game, _, err := s.controller.CreateGame(s.ctx, s.admin, rounds)
	s.Require().NoError(err)
	return game
}

func (s *ControllerSuite) join(user *model.User, playerID string) *model.Player {
	s.random.QueueID(playerID)
	_, player, err := s.controller.JoinGame(s.ctx, testCode, user)
	s.Require().NoError(err)
	return player
}

// startedGame creates a game with admin, bob and cara and moves it to QUESTION_INPUT
func (s *ControllerSuite) startedGame(rounds int) *model.Game {
	game := s.createGame(rounds)
	s.join(s.bob, "p-bob")
	s.join(s.cara, "p-cara")
	_, err := s.controller.StartGame(s.ctx, testCode, s.admin.ID)
	s.Require().NoError(err)
	return game
}

// startRound submits questions with the impostor at the given index among active players
func (s *ControllerSuite) startRound(impostorIdx int, roundID string) *model.Round {
	s.random.QueueIntn(impostorIdx)
	s.random.QueueID(roundID)
	round, err := s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "Favourite fruit?", "Favourite vegetable?")
	s.Require().NoError(err)
	return round
}

func (s *ControllerSuite) game() *model.Game {
	game, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	return game
}

func (s *ControllerSuite) score(id model.PlayerID) int {
	player, err := s.storage.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	return player.Score
}

func (s *ControllerSuite) vote(user *model.User, votedFor model.PlayerID) {
	s.Require().NoError(s.controller.SubmitVote(s.ctx, testCode, user.ID, votedFor))
}

func lastPayload[T any](s *ControllerSuite, name model.EventName) T {
	event, ok := s.broadcaster.Last(name)
	s.Require().True(ok, "no %s event sent", name)
	payload, ok := event.Payload.(T)
	s.Require().True(ok, "unexpected payload type %T", event.Payload)
	return payload
}

// CreateGame tests

func (s *ControllerSuite) TestCreateGameSucceeds() {
	game := s.createGame(3)

	s.Equal(model.GameID("game-1"), game.ID)
	s.Equal(model.GameCode(testCode), game.Code)
	s.Equal(model.PhaseLobby, game.Phase)
	s.Equal(3, game.TotalRounds)
	s.Equal(0, game.CurrentRound)
	s.Equal(s.admin.ID, game.AdminID)

	players, err := s.storage.ListPlayers(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.Equal(model.PlayerID("p-admin"), players[0].ID)
	s.Equal("Alice", players[0].DisplayName)
	s.True(players[0].Active)
}

func (s *ControllerSuite) TestCreateGameRejectsInvalidRounds() {
	for _, rounds := range []int{0, -1} {
		_, _, err := s.controller.CreateGame(s.ctx, s.admin, rounds)
		s.ErrorIs(err, model.ErrInvalidRounds)
	}
}

func (s *ControllerSuite) TestCreateGameRetriesOnCodeCollision() {
	s.createGame(1)

	s.random.QueueString(testCode, "XYZ789")
	s.random.QueueID("game-2", "p-bob")
	game, _, err := s.controller.CreateGame(s.ctx, s.bob, 1)
	s.Require().NoError(err)
	s.Equal(model.GameCode("XYZ789"), game.Code)
}

// JoinGame tests

func (s *ControllerSuite) TestJoinGameBroadcastsRoster() {
	s.createGame(1)

	s.random.QueueID("p-bob")
	game, player, err := s.controller.JoinGame(s.ctx, "abc234", s.bob)
	s.Require().NoError(err)

	s.Equal(model.GameID("game-1"), game.ID)
	s.Equal(model.PlayerID("p-bob"), player.ID)

	payload := lastPayload[model.PlayerUpdatePayload](s, model.EventPlayerUpdate)
	s.Require().Len(payload.Players, 2)
	s.Equal("Alice", payload.Players[0].DisplayName)
	s.Equal("Bob", payload.Players[1].DisplayName)
}

func (s *ControllerSuite) TestJoinGameIsIdempotentPerUser() {
	s.createGame(1)
	first := s.join(s.bob, "p-bob")
	s.broadcaster.Reset()

	_, second, err := s.controller.JoinGame(s.ctx, testCode, s.bob)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	players, err := s.storage.ListPlayers(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Len(players, 2)
	s.Empty(s.broadcaster.Events())
}

func (s *ControllerSuite) TestJoinGameAfterStartRejectsNewPlayers() {
	s.startedGame(1)

	_, _, err := s.controller.JoinGame(s.ctx, testCode, &model.User{ID: "u-late", DisplayName: "Late"})
	s.ErrorIs(err, model.ErrWrongPhase)

	_, player, err := s.controller.JoinGame(s.ctx, testCode, s.bob)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p-bob"), player.ID)
}

func (s *ControllerSuite) TestJoinGameUnknownCode() {
	_, _, err := s.controller.JoinGame(s.ctx, "NOPE99", s.bob)
	s.ErrorIs(err, model.ErrGameNotFound)
}

// StartGame tests

func (s *ControllerSuite) TestStartGame() {
	s.createGame(2)
	s.join(s.bob, "p-bob")

	_, err := s.controller.StartGame(s.ctx, testCode, s.bob.ID)
	s.ErrorIs(err, model.ErrNotAdmin)

	game, err := s.controller.StartGame(s.ctx, testCode, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseQuestionInput, game.Phase)
	s.Equal(model.PhaseQuestionInput, s.game().Phase)

	payload := lastPayload[model.GameStartedPayload](s, model.EventGameStarted)
	s.Equal(model.GameCode(testCode), payload.GameCode)
	s.Equal(2, payload.TotalRounds)

	_, err = s.controller.StartGame(s.ctx, testCode, s.admin.ID)
	s.ErrorIs(err, model.ErrWrongPhase)
}

// SubmitQuestions tests

func (s *ControllerSuite) TestSubmitQuestionsValidation() {
	s.createGame(1)
	s.join(s.bob, "p-bob")

	_, err := s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "a", "b")
	s.ErrorIs(err, model.ErrWrongPhase)

	_, err = s.controller.StartGame(s.ctx, testCode, s.admin.ID)
	s.Require().NoError(err)

	_, err = s.controller.SubmitQuestions(s.ctx, testCode, s.bob.ID, "a", "b")
	s.ErrorIs(err, model.ErrNotAdmin)

	_, err = s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "  ", "b")
	s.ErrorIs(err, model.ErrInvalidQuestion)

	_, err = s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "a", "")
	s.ErrorIs(err, model.ErrInvalidQuestion)
}

func (s *ControllerSuite) TestSubmitQuestionsStartsRound() {
	s.startedGame(2)
	s.broadcaster.Reset()

	round := s.startRound(1, "round-1")

	s.Equal(1, round.Number)
	s.Equal(model.PlayerID("p-bob"), round.ImpostorID)

	game := s.game()
	s.Equal(model.PhaseAnswering, game.Phase)
	s.Equal(1, game.CurrentRound)
	s.Require().NotNil(game.PhaseEndsAt)
	s.Equal(s.start.Add(60*time.Second), *game.PhaseEndsAt)

	phase, due, ok := s.scheduler.Pending("game-1")
	s.True(ok)
	s.Equal(model.PhaseAnswering, phase)
	s.Equal(s.start.Add(60*time.Second), due)

	sent := s.broadcaster.Named(model.EventNewRound)
	s.Require().Len(sent, 3)
	byUser := make(map[model.UserID]model.NewRoundPayload)
	for _, e := range sent {
		byUser[e.UserID] = e.Payload.(model.NewRoundPayload)
	}
	s.Equal(model.RoleImpostor, byUser[s.bob.ID].Role)
	s.Equal("Favourite vegetable?", byUser[s.bob.ID].Question)
	s.Equal(model.RoleOriginal, byUser[s.admin.ID].Role)
	s.Equal("Favourite fruit?", byUser[s.cara.ID].Question)
	s.Equal(1, byUser[s.cara.ID].RoundNumber)
}

func (s *ControllerSuite) TestImpostorChosenAmongActivePlayers() {
	s.startedGame(1)
	s.Require().NoError(s.controller.SetPlayerConnected(s.ctx, "game-1", s.bob.ID, false))

	round := s.startRound(1, "round-1")

	s.Equal(model.PlayerID("p-cara"), round.ImpostorID)
}

func (s *ControllerSuite) TestSubmitQuestionsWithoutActivePlayers() {
	s.startedGame(1)
	for _, u := range []*model.User{s.admin, s.bob, s.cara} {
		s.Require().NoError(s.controller.SetPlayerConnected(s.ctx, "game-1", u.ID, false))
	}

	_, err := s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "a", "b")
	s.ErrorIs(err, model.ErrInsufficientPlayers)
	s.Equal(model.PhaseQuestionInput, s.game().Phase)
}

func (s *ControllerSuite) TestSubmitQuestionsAfterShutdownFailsToSchedule() {
	s.startedGame(1)
	s.controller.Shutdown()

	s.random.QueueIntn(0)
	_, err := s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "a", "b")
	s.ErrorIs(err, model.ErrSchedulingFailure)
}

// SubmitAnswer tests

func (s *ControllerSuite) TestSubmitAnswer() {
	s.startedGame(1)
	round := s.startRound(0, "round-1")

	s.Require().NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, " bananas "))
	s.Require().NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, "apples"))

	subs, err := s.storage.ListSubmissions(s.ctx, round.ID)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Equal("apples", *subs[0].Answer)
}

func (s *ControllerSuite) TestSubmitAnswerRejectsEmpty() {
	s.startedGame(1)
	s.startRound(0, "round-1")

	s.ErrorIs(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, "   "), model.ErrInvalidAnswer)
}

func (s *ControllerSuite) TestEmptyAnswerOutsideWindowIsDropped() {
	s.startedGame(1)
	s.NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, ""))

	round := s.startRound(0, "round-1")
	s.NoError(s.controller.SubmitAnswer(s.ctx, testCode, "u-stranger", "  "))

	s.clock.Advance(60 * time.Second)
	s.NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, "   "))

	subs, err := s.storage.ListSubmissions(s.ctx, round.ID)
	s.Require().NoError(err)
	s.Empty(subs)
}

func (s *ControllerSuite) TestSubmitAnswerIgnoredOutsideWindowOrFromStrangers() {
	s.startedGame(1)

	s.NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, "too early"))

	round := s.startRound(0, "round-1")
	s.NoError(s.controller.SubmitAnswer(s.ctx, testCode, "u-stranger", "hello"))

	s.clock.Advance(60 * time.Second)
	s.NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, "too late"))

	subs, err := s.storage.ListSubmissions(s.ctx, round.ID)
	s.Require().NoError(err)
	s.Empty(subs)
}

// Answer window tests

func (s *ControllerSuite) TestAnswerWindowExpiryOpensVoting() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.Require().NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.cara.ID, "kiwi"))
	s.Require().NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.admin.ID, "apple"))

	s.clock.Advance(59 * time.Second)
	s.Equal(model.PhaseAnswering, s.game().Phase)

	s.clock.Advance(time.Second)
	game := s.game()
	s.Equal(model.PhaseVoting, game.Phase)
	s.Equal(s.start.Add(60*time.Second+180*time.Second), *game.PhaseEndsAt)

	payload := lastPayload[model.VotingPhasePayload](s, model.EventVotingPhase)
	s.Equal(1, payload.RoundNumber)
	s.Require().Len(payload.Answers, 2)
	s.Equal(model.PlayerID("p-admin"), payload.Answers[0].Player.ID)
	s.Equal("apple", payload.Answers[0].Answer)
	s.Equal(model.PlayerID("p-cara"), payload.Answers[1].Player.ID)
	s.Equal("kiwi", payload.Answers[1].Answer)

	phase, _, ok := s.scheduler.Pending("game-1")
	s.True(ok)
	s.Equal(model.PhaseVoting, phase)
}

func (s *ControllerSuite) TestStaleTimerCallbackIsNoOp() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.clock.Advance(60 * time.Second)
	s.Require().Equal(model.PhaseVoting, s.game().Phase)
	before := len(s.broadcaster.Events())

	s.Require().NoError(s.controller.answerWindowExpired(s.ctx, "game-1", 1))
	s.Require().NoError(s.controller.interRoundPauseExpired(s.ctx, "game-1", 1))

	s.Equal(model.PhaseVoting, s.game().Phase)
	s.Len(s.broadcaster.Events(), before)
}

// SubmitVote tests

func (s *ControllerSuite) TestVoteBroadcastsRunningTally() {
	s.startedGame(1)
	s.startRound(1, "round-1")
	s.clock.Advance(60 * time.Second)

	s.vote(s.admin, "p-bob")
	payload := lastPayload[model.VoteReceivedPayload](s, model.EventVoteReceived)
	s.Equal(model.PlayerID("p-admin"), payload.Voter)
	s.Equal(model.PlayerID("p-bob"), payload.VotedFor)
	s.Equal(map[model.PlayerID]int{"p-bob": 1}, payload.Tally)

	s.vote(s.cara, "p-bob")
	s.vote(s.admin, "p-cara")
	payload = lastPayload[model.VoteReceivedPayload](s, model.EventVoteReceived)
	s.Equal(map[model.PlayerID]int{"p-bob": 1, "p-cara": 1}, payload.Tally)
	s.Len(s.broadcaster.Named(model.EventVoteReceived), 3)
}

func (s *ControllerSuite) TestVoteIgnoredOutsideWindowOrForStrangers() {
	s.startedGame(1)
	round := s.startRound(1, "round-1")

	s.vote(s.admin, "p-bob") // still answering
	s.clock.Advance(60 * time.Second)
	s.vote(s.admin, "p-nobody")
	s.vote(&model.User{ID: "u-stranger"}, "p-bob")

	subs, err := s.storage.ListSubmissions(s.ctx, round.ID)
	s.Require().NoError(err)
	s.Empty(subs)
	s.Empty(s.broadcaster.Named(model.EventVoteReceived))
}

func (s *ControllerSuite) TestSelfVoteIsAccepted() {
	s.startedGame(1)
	s.startRound(1, "round-1")
	s.clock.Advance(60 * time.Second)

	s.vote(s.cara, "p-cara")

	payload := lastPayload[model.VoteReceivedPayload](s, model.EventVoteReceived)
	s.Equal(map[model.PlayerID]int{"p-cara": 1}, payload.Tally)
}

// Scoring and round end tests

func (s *ControllerSuite) TestCaughtImpostorThenNextRound() {
	s.startedGame(2)
	s.startRound(1, "round-1") // bob is the impostor
	s.clock.Advance(60 * time.Second)

	s.vote(s.admin, "p-bob")
	s.vote(s.cara, "p-bob")
	s.vote(s.bob, "p-cara")
	s.clock.Advance(180 * time.Second)

	result := lastPayload[model.RoundResultPayload](s, model.EventRoundResult)
	s.Equal(model.OutcomeCaught, result.Outcome)
	s.Equal(model.PlayerID("p-bob"), result.Impostor.ID)
	s.Equal("Favourite vegetable?", result.ImpostorQuestion)
	s.Equal(map[model.PlayerID]int{"p-admin": 2, "p-cara": 2}, result.Deltas)
	s.Require().Len(result.Scores, 3)
	s.Equal(model.PlayerID("p-admin"), result.Scores[0].Player.ID)
	s.Equal(2, result.Scores[0].Score)
	s.Equal(model.PlayerID("p-bob"), result.Scores[2].Player.ID)

	s.Equal(2, s.score("p-admin"))
	s.Equal(0, s.score("p-bob"))
	s.Equal(2, s.score("p-cara"))

	game := s.game()
	s.Equal(model.PhaseRoundEnd, game.Phase)
	s.Equal(s.clock.Now().Add(5*time.Second), *game.PhaseEndsAt)

	s.clock.Advance(5 * time.Second)
	s.Equal(model.PhaseQuestionInput, s.game().Phase)

	ready := s.broadcaster.Named(model.EventNextRoundReady)
	s.Require().Len(ready, 2)
	s.Empty(ready[0].UserID)
	s.Equal(2, ready[0].Payload.(model.NextRoundReadyPayload).RoundNumber)
	s.False(ready[0].Payload.(model.NextRoundReadyPayload).AwaitingQuestions)
	s.Equal(s.admin.ID, ready[1].UserID)
	s.True(ready[1].Payload.(model.NextRoundReadyPayload).AwaitingQuestions)

	round := s.startRound(0, "round-2")
	s.Equal(2, round.Number)
	s.Equal(2, s.game().CurrentRound)
}

func (s *ControllerSuite) TestTiedImpostorScoresOne() {
	s.startedGame(1)
	s.startRound(0, "round-1") // admin is the impostor
	s.clock.Advance(60 * time.Second)

	s.vote(s.bob, "p-admin")
	s.vote(s.admin, "p-cara")
	s.clock.Advance(180 * time.Second)

	s.Equal(model.OutcomeTied, lastPayload[model.RoundResultPayload](s, model.EventRoundResult).Outcome)
	s.Equal(1, s.score("p-admin"))
	s.Equal(0, s.score("p-bob"))
	s.Equal(0, s.score("p-cara"))
}

func (s *ControllerSuite) TestZeroVotesImpostorEscapes() {
	s.startedGame(1)
	s.startRound(2, "round-1") // cara is the impostor
	s.clock.Advance(60 * time.Second)
	s.clock.Advance(180 * time.Second)

	result := lastPayload[model.RoundResultPayload](s, model.EventRoundResult)
	s.Equal(model.OutcomeEscaped, result.Outcome)
	s.Empty(result.Tally)
	s.Equal(2, s.score("p-cara"))
	s.Equal(0, s.score("p-admin"))
}

func (s *ControllerSuite) TestFinalRoundEndsGame() {
	s.startedGame(1)
	s.startRound(2, "round-1") // cara is the impostor
	s.clock.Advance(60 * time.Second)

	s.vote(s.admin, "p-bob")
	s.vote(s.bob, "p-admin")
	s.vote(s.cara, "p-bob")
	s.clock.Advance(180 * time.Second)

	game := s.game()
	s.Equal(model.PhaseGameOver, game.Phase)
	s.Nil(game.PhaseEndsAt)
	s.Equal(0, s.scheduler.Len())
	s.Equal(0, s.controller.sessions.len())

	over := lastPayload[model.GameOverPayload](s, model.EventGameOver)
	s.False(over.Abandoned)
	s.Require().Len(over.FinalScores, 3)
	s.Equal(model.PlayerID("p-cara"), over.FinalScores[0].Player.ID)
	s.Equal(2, over.FinalScores[0].Score)

	// Late votes after the game are dropped
	s.vote(s.admin, "p-cara")
	_, err := s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "a", "b")
	s.ErrorIs(err, model.ErrGameFinished)
}

// AbandonGame tests

func (s *ControllerSuite) TestAbandonGameCancelsTimer() {
	s.startedGame(3)
	s.startRound(0, "round-1")

	_, err := s.controller.AbandonGame(s.ctx, testCode, s.bob.ID)
	s.ErrorIs(err, model.ErrNotAdmin)

	game, err := s.controller.AbandonGame(s.ctx, testCode, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseAbandoned, game.Phase)
	s.Equal(0, s.scheduler.Len())

	payload := lastPayload[model.GameOverPayload](s, model.EventGameAbandoned)
	s.True(payload.Abandoned)
	s.Len(payload.FinalScores, 3)

	s.clock.Advance(time.Hour)
	s.Equal(model.PhaseAbandoned, s.game().Phase)

	_, err = s.controller.AbandonGame(s.ctx, testCode, s.admin.ID)
	s.ErrorIs(err, model.ErrGameFinished)
}

// SetPlayerConnected tests

func (s *ControllerSuite) TestSetPlayerConnected() {
	s.createGame(1)
	s.join(s.bob, "p-bob")
	s.broadcaster.Reset()

	s.Require().NoError(s.controller.SetPlayerConnected(s.ctx, "game-1", s.bob.ID, false))
	player, err := s.storage.GetPlayer(s.ctx, "p-bob")
	s.Require().NoError(err)
	s.False(player.Active)

	payload := lastPayload[model.PlayerUpdatePayload](s, model.EventPlayerUpdate)
	s.False(payload.Players[1].Active)

	s.Require().NoError(s.controller.SetPlayerConnected(s.ctx, "game-1", s.bob.ID, false))
	s.Len(s.broadcaster.Named(model.EventPlayerUpdate), 1)

	s.ErrorIs(s.controller.SetPlayerConnected(s.ctx, "game-1", "u-stranger", true), model.ErrNotInGame)
}

// GetGameView tests

func (s *ControllerSuite) TestGetGameViewShowsOwnRole() {
	s.startedGame(1)
	s.startRound(1, "round-1")
	s.Require().NoError(s.controller.SubmitAnswer(s.ctx, testCode, s.bob.ID, "carrot"))

	view, err := s.controller.GetGameView(s.ctx, testCode, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseAnswering, view.Game.Phase)
	s.Len(view.Players, 3)
	s.Require().NotNil(view.Self)
	s.Equal(model.PlayerID("p-bob"), view.Self.ID)
	s.Require().NotNil(view.Round)
	s.Equal(model.RoleImpostor, view.Round.Role)
	s.Equal("Favourite vegetable?", view.Round.Question)
	s.True(view.Round.Answered)
	s.False(view.Round.Voted)
	s.Nil(view.Round.Answers)

	s.clock.Advance(60 * time.Second)
	view, err = s.controller.GetGameView(s.ctx, testCode, s.cara.ID)
	s.Require().NoError(err)
	s.Equal(model.RoleOriginal, view.Round.Role)
	s.False(view.Round.Answered)
	s.Require().Len(view.Round.Answers, 1)
	s.Equal("carrot", view.Round.Answers[0].Answer)
}

func (s *ControllerSuite) TestGetGameViewForOutsider() {
	s.startedGame(1)
	s.startRound(1, "round-1")

	view, err := s.controller.GetGameView(s.ctx, testCode, "u-stranger")
	s.Require().NoError(err)
	s.Nil(view.Self)
	s.Nil(view.Round)
	s.Len(view.Players, 3)
}

// ListEvents tests

func (s *ControllerSuite) TestListEventsRecordsBroadcasts() {
	s.startedGame(1)
	s.startRound(1, "round-1")
	s.clock.Advance(60 * time.Second)
	s.vote(s.admin, "p-bob")
	s.clock.Advance(180 * time.Second)

	events, err := s.controller.ListEvents(s.ctx, testCode)
	s.Require().NoError(err)

	names := make([]model.EventName, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	s.Equal([]model.EventName{
		model.EventPlayerUpdate,
		model.EventPlayerUpdate,
		model.EventGameStarted,
		model.EventVotingPhase,
		model.EventVoteReceived,
		model.EventRoundResult,
		model.EventGameOver,
	}, names)
}

// Recovery tests

func (s *ControllerSuite) TestRecoverRearmsRemainingWindow() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.clock.Advance(20 * time.Second)
	s.controller.Shutdown()

	restarted := s.newController(scheduler.New(s.clock, testutil.NopLogger()))
	resumed, err := restarted.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, resumed)

	s.clock.Advance(39 * time.Second)
	s.Equal(model.PhaseAnswering, s.game().Phase)
	s.clock.Advance(time.Second)
	s.Equal(model.PhaseVoting, s.game().Phase)
}

func (s *ControllerSuite) TestRecoverFiresOverdueWindow() {
	s.startedGame(2)
	s.startRound(0, "round-1")
	s.clock.Advance(60 * time.Second)
	s.controller.Shutdown()
	s.clock.Advance(time.Hour)

	restarted := s.newController(scheduler.New(s.clock, testutil.NopLogger()))
	_, err := restarted.Recover(s.ctx)
	s.Require().NoError(err)

	s.clock.Advance(0)
	s.Equal(model.PhaseRoundEnd, s.game().Phase)
}

func (s *ControllerSuite) TestRecoverFinishesScoredFinalRound() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.controller.Shutdown()

	game := s.game()
	game.Phase = model.PhaseScoring
	game.PhaseEndsAt = nil
	s.Require().NoError(s.storage.UpdateGame(s.ctx, game))

	restarted := s.newController(scheduler.New(s.clock, testutil.NopLogger()))
	resumed, err := restarted.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, resumed)
	s.Equal(model.PhaseGameOver, s.game().Phase)
}

func (s *ControllerSuite) TestRecoverSkipsUntimedGames() {
	s.createGame(1)

	resumed, err := s.controller.Recover(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, resumed)
	s.Equal(0, s.scheduler.Len())
}
