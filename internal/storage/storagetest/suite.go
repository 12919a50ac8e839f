// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/storage"
)

// Suite runs the storage contract against the backend returned by NewStorage
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store for each test
	NewStorage func() storage.Storage

	Store storage.Storage
	Ctx   context.Context
	Now   time.Time
}

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage()
	s.Ctx = context.Background()
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) newGame(id, code string) *model.Game {
	game := &model.Game{
		ID:          model.GameID(id),
		Code:        model.GameCode(code),
		AdminID:     "user-admin",
		TotalRounds: 3,
		Phase:       model.PhaseLobby,
		CreatedAt:   s.Now,
		UpdatedAt:   s.Now,
	}
	s.Require().NoError(s.Store.CreateGame(s.Ctx, game))
	return game
}

func (s *Suite) newPlayer(gameID model.GameID, id, user string, joined time.Time) *model.Player {
	player := &model.Player{
		ID:          model.PlayerID(id),
		GameID:      gameID,
		UserID:      model.UserID(user),
		DisplayName: "Player " + id,
		Active:      true,
		JoinedAt:    joined,
	}
	s.Require().NoError(s.Store.CreatePlayer(s.Ctx, player))
	return player
}

func (s *Suite) newRound(gameID model.GameID, id string, number int, impostor model.PlayerID) *model.Round {
	round := &model.Round{
		ID:               model.RoundID(id),
		GameID:           gameID,
		Number:           number,
		OriginalQuestion: "Favourite fruit?",
		ImpostorQuestion: "Favourite vegetable?",
		ImpostorID:       impostor,
		CreatedAt:        s.Now,
	}
	s.Require().NoError(s.Store.CreateRound(s.Ctx, round))
	return round
}

// User tests

func (s *Suite) TestSaveAndGetUser() {
	user := &model.User{ID: "user-1", DisplayName: "Alice", CreatedAt: s.Now}
	s.Require().NoError(s.Store.SaveUser(s.Ctx, user))

	got, err := s.Store.GetUser(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)
	s.True(s.Now.Equal(got.CreatedAt))
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Store.GetUser(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Game tests

func (s *Suite) TestCreateAndGetGame() {
	s.newGame("game-1", "ABC123")

	got, err := s.Store.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.GameCode("ABC123"), got.Code)
	s.Equal(model.UserID("user-admin"), got.AdminID)
	s.Equal(3, got.TotalRounds)
	s.Equal(0, got.CurrentRound)
	s.Equal(model.PhaseLobby, got.Phase)
	s.Nil(got.PhaseEndsAt)
}

func (s *Suite) TestGetGameByCode() {
	s.newGame("game-1", "ABC123")

	got, err := s.Store.GetGameByCode(s.Ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), got.ID)

	_, err = s.Store.GetGameByCode(s.Ctx, "ZZZZZZ")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestCreateGameRejectsDuplicateCode() {
	s.newGame("game-1", "ABC123")

	err := s.Store.CreateGame(s.Ctx, &model.Game{
		ID: "game-2", Code: "ABC123", AdminID: "u", TotalRounds: 1,
		Phase: model.PhaseLobby, CreatedAt: s.Now, UpdatedAt: s.Now,
	})
	s.ErrorIs(err, model.ErrGameCodeTaken)
}

func (s *Suite) TestGetGameNotFound() {
	_, err := s.Store.GetGame(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestUpdateGame() {
	game := s.newGame("game-1", "ABC123")

	endsAt := s.Now.Add(time.Minute)
	game.Phase = model.PhaseAnswering
	game.CurrentRound = 1
	game.PhaseEndsAt = &endsAt
	s.Require().NoError(s.Store.UpdateGame(s.Ctx, game))

	got, err := s.Store.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.PhaseAnswering, got.Phase)
	s.Equal(1, got.CurrentRound)
	s.Require().NotNil(got.PhaseEndsAt)
	s.True(endsAt.Equal(*got.PhaseEndsAt))
}

func (s *Suite) TestUpdateMissingGameFails() {
	err := s.Store.UpdateGame(s.Ctx, &model.Game{ID: "missing", Code: "NOPE00", Phase: model.PhaseLobby})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestListActiveGamesExcludesTerminal() {
	s.newGame("game-1", "AAAAAA")
	over := s.newGame("game-2", "BBBBBB")
	s.newGame("game-3", "CCCCCC")

	over.Phase = model.PhaseGameOver
	s.Require().NoError(s.Store.UpdateGame(s.Ctx, over))

	games, err := s.Store.ListActiveGames(s.Ctx)
	s.Require().NoError(err)

	var ids []model.GameID
	for _, g := range games {
		ids = append(ids, g.ID)
	}
	s.ElementsMatch([]model.GameID{"game-1", "game-3"}, ids)
}

// Player tests

func (s *Suite) TestCreateAndListPlayersInJoinOrder() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-b", "user-b", s.Now)
	s.newPlayer(game.ID, "p-a", "user-a", s.Now.Add(time.Second))
	s.newPlayer(game.ID, "p-c", "user-c", s.Now.Add(2*time.Second))

	players, err := s.Store.ListPlayers(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Equal([]model.PlayerID{"p-b", "p-a", "p-c"}, model.PlayerIDs(players))
	s.True(players[0].Active)
	s.Equal(0, players[0].Score)
}

func (s *Suite) TestCreatePlayerIsUniquePerGameAndUser() {
	game := s.newGame("game-1", "ABC123")
	other := s.newGame("game-2", "DEF456")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)

	err := s.Store.CreatePlayer(s.Ctx, &model.Player{ID: "p-2", GameID: game.ID, UserID: "user-1", Active: true, JoinedAt: s.Now})
	s.ErrorIs(err, model.ErrAlreadyJoined)

	// Same user may join a different game
	s.newPlayer(other.ID, "p-3", "user-1", s.Now)
}

func (s *Suite) TestGetPlayerByUser() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)

	got, err := s.Store.GetPlayerByUser(s.Ctx, game.ID, "user-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p-1"), got.ID)

	_, err = s.Store.GetPlayerByUser(s.Ctx, game.ID, "user-2")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestSetPlayerActive() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)

	s.Require().NoError(s.Store.SetPlayerActive(s.Ctx, "p-1", false))
	got, err := s.Store.GetPlayer(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.False(got.Active)

	s.ErrorIs(s.Store.SetPlayerActive(s.Ctx, "missing", true), model.ErrPlayerNotFound)
}

func (s *Suite) TestIncrementScoresAccumulates() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	s.newPlayer(game.ID, "p-2", "user-2", s.Now.Add(time.Second))

	s.Require().NoError(s.Store.IncrementScores(s.Ctx, game.ID, map[model.PlayerID]int{"p-1": 2, "p-2": 1}))
	s.Require().NoError(s.Store.IncrementScores(s.Ctx, game.ID, map[model.PlayerID]int{"p-1": 2}))

	p1, err := s.Store.GetPlayer(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(4, p1.Score)

	players, err := s.Store.ListPlayers(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(4, players[0].Score)
	s.Equal(1, players[1].Score)
}

func (s *Suite) TestIncrementScoresRejectsUnknownPlayer() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)

	err := s.Store.IncrementScores(s.Ctx, game.ID, map[model.PlayerID]int{"missing": 1})
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Round tests

func (s *Suite) TestCreateAndGetRound() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	s.newRound(game.ID, "round-1", 1, "p-1")

	got, err := s.Store.GetRound(s.Ctx, game.ID, 1)
	s.Require().NoError(err)
	s.Equal(model.RoundID("round-1"), got.ID)
	s.Equal(model.PlayerID("p-1"), got.ImpostorID)
	s.Equal("Favourite fruit?", got.OriginalQuestion)
	s.Equal("Favourite vegetable?", got.ImpostorQuestion)

	_, err = s.Store.GetRound(s.Ctx, game.ID, 2)
	s.ErrorIs(err, model.ErrRoundNotFound)
}

func (s *Suite) TestCreateRoundRejectsDuplicateNumber() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	s.newRound(game.ID, "round-1", 1, "p-1")

	err := s.Store.CreateRound(s.Ctx, &model.Round{
		ID: "round-dup", GameID: game.ID, Number: 1,
		OriginalQuestion: "a", ImpostorQuestion: "b", ImpostorID: "p-1", CreatedAt: s.Now,
	})
	s.ErrorIs(err, model.ErrRoundExists)
}

// Submission tests

func (s *Suite) TestAnswerAndVoteUpsertIndependently() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	s.newPlayer(game.ID, "p-2", "user-2", s.Now.Add(time.Second))
	round := s.newRound(game.ID, "round-1", 1, "p-1")

	s.Require().NoError(s.Store.UpsertAnswer(s.Ctx, round.ID, "p-1", "apples", s.Now))
	s.Require().NoError(s.Store.UpsertVote(s.Ctx, round.ID, "p-1", "p-2", s.Now.Add(time.Second)))

	subs, err := s.Store.ListSubmissions(s.Ctx, round.ID)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Require().NotNil(subs[0].Answer)
	s.Equal("apples", *subs[0].Answer)
	s.Require().NotNil(subs[0].VotedFor)
	s.Equal(model.PlayerID("p-2"), *subs[0].VotedFor)
}

func (s *Suite) TestRepeatedVoteKeepsOnlyLatest() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	s.newPlayer(game.ID, "p-2", "user-2", s.Now.Add(time.Second))
	round := s.newRound(game.ID, "round-1", 1, "p-1")

	s.Require().NoError(s.Store.UpsertVote(s.Ctx, round.ID, "p-2", "p-2", s.Now))
	s.Require().NoError(s.Store.UpsertVote(s.Ctx, round.ID, "p-2", "p-1", s.Now.Add(time.Second)))

	subs, err := s.Store.ListSubmissions(s.Ctx, round.ID)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Nil(subs[0].Answer)
	s.Equal(model.PlayerID("p-1"), *subs[0].VotedFor)
}

func (s *Suite) TestAnswerOverwrite() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	round := s.newRound(game.ID, "round-1", 1, "p-1")

	s.Require().NoError(s.Store.UpsertAnswer(s.Ctx, round.ID, "p-1", "first", s.Now))
	s.Require().NoError(s.Store.UpsertAnswer(s.Ctx, round.ID, "p-1", "second", s.Now.Add(time.Second)))

	subs, err := s.Store.ListSubmissions(s.Ctx, round.ID)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Equal("second", *subs[0].Answer)
}

func (s *Suite) TestListSubmissionsForUnknownRoundIsEmpty() {
	subs, err := s.Store.ListSubmissions(s.Ctx, "missing")
	s.Require().NoError(err)
	s.Empty(subs)
}

// Event log tests

func (s *Suite) TestAppendAndListEvents() {
	game := s.newGame("game-1", "ABC123")

	for i, name := range []model.EventName{model.EventGameStarted, model.EventVotingPhase, model.EventGameOver} {
		event, err := model.NewGameEvent(game.ID, name, map[string]int{"n": i}, s.Now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
		s.Require().NoError(s.Store.AppendEvent(s.Ctx, event))
	}

	events, err := s.Store.ListEvents(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(model.EventGameStarted, events[0].Name)
	s.Equal(model.EventGameOver, events[2].Name)
	s.JSONEq(`{"n":1}`, string(events[1].Payload))
}

// Transaction tests

func (s *Suite) TestAtomicallyCommits() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)

	err := s.Store.Atomically(s.Ctx, func(tx storage.Storage) error {
		game.Phase = model.PhaseQuestionInput
		if err := tx.UpdateGame(s.Ctx, game); err != nil {
			return err
		}
		return tx.IncrementScores(s.Ctx, game.ID, map[model.PlayerID]int{"p-1": 2})
	})
	s.Require().NoError(err)

	got, err := s.Store.GetGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseQuestionInput, got.Phase)
	player, err := s.Store.GetPlayer(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(2, player.Score)
}

func (s *Suite) TestAtomicallyRollsBackOnError() {
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	boom := errors.New("boom")

	err := s.Store.Atomically(s.Ctx, func(tx storage.Storage) error {
		next := *game
		next.Phase = model.PhaseQuestionInput
		if err := tx.UpdateGame(s.Ctx, &next); err != nil {
			return err
		}
		if err := tx.IncrementScores(s.Ctx, game.ID, map[model.PlayerID]int{"p-1": 2}); err != nil {
			return err
		}
		event, err := model.NewGameEvent(game.ID, model.EventGameStarted, struct{}{}, s.Now)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(s.Ctx, event); err != nil {
			return err
		}
		return fmt.Errorf("after writes: %w", boom)
	})
	s.ErrorIs(err, boom)

	got, err := s.Store.GetGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseLobby, got.Phase)
	player, err := s.Store.GetPlayer(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(0, player.Score)
	events, err := s.Store.ListEvents(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *Suite) TestAtomicallyRollsBackEveryKindOfWrite() {
	s.Require().NoError(s.Store.SaveUser(s.Ctx, &model.User{ID: "user-1", DisplayName: "Alice"}))
	game := s.newGame("game-1", "ABC123")
	s.newPlayer(game.ID, "p-1", "user-1", s.Now)
	round := s.newRound(game.ID, "r-1", 1, "p-1")
	s.Require().NoError(s.Store.UpsertAnswer(s.Ctx, round.ID, "p-1", "apple", s.Now))
	boom := errors.New("boom")

	err := s.Store.Atomically(s.Ctx, func(tx storage.Storage) error {
		if err := tx.SaveUser(s.Ctx, &model.User{ID: "user-1", DisplayName: "Mallory"}); err != nil {
			return err
		}
		other := &model.Game{ID: "game-2", Code: "XYZ789", Phase: model.PhaseLobby, TotalRounds: 1, CreatedAt: s.Now, UpdatedAt: s.Now}
		if err := tx.CreateGame(s.Ctx, other); err != nil {
			return err
		}
		late := &model.Player{ID: "p-2", GameID: game.ID, UserID: "user-2", DisplayName: "Bob", Active: true, JoinedAt: s.Now}
		if err := tx.CreatePlayer(s.Ctx, late); err != nil {
			return err
		}
		if err := tx.SetPlayerActive(s.Ctx, "p-1", false); err != nil {
			return err
		}
		next := &model.Round{ID: "r-2", GameID: game.ID, Number: 2, OriginalQuestion: "a", ImpostorQuestion: "b", ImpostorID: "p-1", CreatedAt: s.Now}
		if err := tx.CreateRound(s.Ctx, next); err != nil {
			return err
		}
		if err := tx.UpsertAnswer(s.Ctx, round.ID, "p-1", "pear", s.Now); err != nil {
			return err
		}
		if err := tx.UpsertVote(s.Ctx, round.ID, "p-1", "p-1", s.Now); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	user, err := s.Store.GetUser(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("Alice", user.DisplayName)

	_, err = s.Store.GetGame(s.Ctx, "game-2")
	s.ErrorIs(err, model.ErrGameNotFound)
	_, err = s.Store.GetGameByCode(s.Ctx, "XYZ789")
	s.ErrorIs(err, model.ErrGameNotFound)

	players, err := s.Store.ListPlayers(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.True(players[0].Active)

	_, err = s.Store.GetRound(s.Ctx, game.ID, 2)
	s.ErrorIs(err, model.ErrRoundNotFound)

	subs, err := s.Store.ListSubmissions(s.Ctx, round.ID)
	s.Require().NoError(err)
	s.Require().Len(subs, 1)
	s.Require().True(subs[0].HasAnswer())
	s.Equal("apple", *subs[0].Answer)
	s.False(subs[0].HasVote())

	got, err := s.Store.GetGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseLobby, got.Phase)
}

func (s *Suite) TestAtomicallyKeepsLastOfRepeatedUpdates() {
	game := s.newGame("game-1", "ABC123")

	err := s.Store.Atomically(s.Ctx, func(tx storage.Storage) error {
		first := *game
		first.Phase = model.PhaseQuestionInput
		if err := tx.UpdateGame(s.Ctx, &first); err != nil {
			return err
		}
		second := *game
		second.Phase = model.PhaseAbandoned
		return tx.UpdateGame(s.Ctx, &second)
	})
	s.Require().NoError(err)

	got, err := s.Store.GetGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseAbandoned, got.Phase)

	active, err := s.Store.ListActiveGames(s.Ctx)
	s.Require().NoError(err)
	s.Empty(active)
}
