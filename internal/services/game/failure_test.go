package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/storage"
)

var errStoreDown = errors.New("store unavailable")

// storeFaults is shared by a faultyStorage and every transaction view it hands out
type storeFaults struct {
	mu sync.Mutex
	// updateGame fails the next UpdateGame into each listed phase, once per entry
	updateGame []model.Phase
	// listPlayers fails this many ListPlayers calls
	listPlayers int
	// committed holds the phase of every UpdateGame that was committed, in order
	committed []model.Phase
}

func (f *storeFaults) failUpdateTo(phases ...model.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateGame = append(f.updateGame, phases...)
}

func (f *storeFaults) failListPlayers(times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPlayers = times
}

func (f *storeFaults) takeUpdate(phase model.Phase) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.updateGame {
		if p == phase {
			f.updateGame = append(f.updateGame[:i], f.updateGame[i+1:]...)
			return true
		}
	}
	return false
}

func (f *storeFaults) takeListPlayers() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPlayers == 0 {
		return false
	}
	f.listPlayers--
	return true
}

func (f *storeFaults) commit(phases ...model.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, phases...)
}

func (f *storeFaults) phases() []model.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Phase(nil), f.committed...)
}

// faultyStorage injects store errors and records committed phase changes
type faultyStorage struct {
	storage.Storage
	faults *storeFaults

	// pending collects phases written inside a transaction until it commits
	pending *[]model.Phase
}

func (f *faultyStorage) Atomically(ctx context.Context, fn func(tx storage.Storage) error) error {
	if f.pending != nil {
		return fn(f)
	}

	var pending []model.Phase
	err := f.Storage.Atomically(ctx, func(tx storage.Storage) error {
		pending = nil
		return fn(&faultyStorage{Storage: tx, faults: f.faults, pending: &pending})
	})
	if err == nil {
		f.faults.commit(pending...)
	}
	return err
}

func (f *faultyStorage) UpdateGame(ctx context.Context, game *model.Game) error {
	if f.faults.takeUpdate(game.Phase) {
		return errStoreDown
	}
	if err := f.Storage.UpdateGame(ctx, game); err != nil {
		return err
	}
	if f.pending != nil {
		*f.pending = append(*f.pending, game.Phase)
	} else {
		f.faults.commit(game.Phase)
	}
	return nil
}

func (f *faultyStorage) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	if f.faults.takeListPlayers() {
		return nil, errStoreDown
	}
	return f.Storage.ListPlayers(ctx, gameID)
}

// sessionPhase returns the phase cached in the controller's session
func (s *ControllerSuite) sessionPhase() model.Phase {
	sess := s.controller.sessions.get("game-1")
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.Require().NotNil(sess.game)
	return sess.game.Phase
}

func (s *ControllerSuite) eventNames() []model.EventName {
	events, err := s.storage.ListEvents(s.ctx, "game-1")
	s.Require().NoError(err)
	names := make([]model.EventName, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

// Phase edge tests

func (s *ControllerSuite) TestPhaseOnlyMovesAlongLegalEdges() {
	s.startedGame(2)
	s.startRound(1, "round-1")
	s.clock.Advance(60 * time.Second)
	s.vote(s.admin, "p-bob")
	s.clock.Advance(180 * time.Second)
	s.clock.Advance(5 * time.Second)
	s.startRound(0, "round-2")
	s.clock.Advance(60 * time.Second)
	s.clock.Advance(180 * time.Second)

	phases := s.faults.phases()
	s.Equal([]model.Phase{
		model.PhaseQuestionInput,
		model.PhaseAnswering, model.PhaseVoting, model.PhaseScoring, model.PhaseRoundEnd,
		model.PhaseQuestionInput,
		model.PhaseAnswering, model.PhaseVoting, model.PhaseScoring, model.PhaseGameOver,
	}, phases)

	prev := model.PhaseLobby
	for _, next := range phases {
		s.True(prev.CanTransitionTo(next), "%s -> %s", prev, next)
		prev = next
	}
}

func (s *ControllerSuite) TestRoundEndRefusesGameNotInScoring() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.clock.Advance(60 * time.Second)

	sess, err := s.controller.acquire(s.ctx, "game-1")
	s.Require().NoError(err)
	players, err := s.storage.ListPlayers(s.ctx, "game-1")
	s.Require().NoError(err)
	err = s.controller.evaluateRoundEnd(s.ctx, sess, players)
	sess.mu.Unlock()

	s.ErrorIs(err, model.ErrWrongPhase)
	s.Equal(model.PhaseVoting, s.game().Phase)
	s.Equal(model.PhaseVoting, s.sessionPhase())
}

// Store failure tests

func (s *ControllerSuite) TestStartGameStoreFailureLeavesLobby() {
	s.createGame(1)
	s.join(s.bob, "p-bob")
	s.broadcaster.Reset()
	s.faults.failUpdateTo(model.PhaseQuestionInput)

	_, err := s.controller.StartGame(s.ctx, testCode, s.admin.ID)
	s.ErrorIs(err, errStoreDown)

	s.Equal(model.PhaseLobby, s.sessionPhase())
	s.Equal(model.PhaseLobby, s.game().Phase)
	s.NotContains(s.eventNames(), model.EventGameStarted)
	s.Empty(s.broadcaster.Events())

	game, err := s.controller.StartGame(s.ctx, testCode, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(model.PhaseQuestionInput, game.Phase)
	s.Equal(model.PhaseQuestionInput, s.game().Phase)
}

func (s *ControllerSuite) TestSubmitQuestionsStoreFailureCreatesNoRound() {
	s.startedGame(1)
	s.broadcaster.Reset()
	s.faults.failUpdateTo(model.PhaseAnswering)

	s.random.QueueIntn(1)
	s.random.QueueID("round-lost")
	_, err := s.controller.SubmitQuestions(s.ctx, testCode, s.admin.ID, "a", "b")
	s.ErrorIs(err, errStoreDown)

	s.Equal(model.PhaseQuestionInput, s.sessionPhase())
	game := s.game()
	s.Equal(model.PhaseQuestionInput, game.Phase)
	s.Equal(0, game.CurrentRound)
	_, err = s.storage.GetRound(s.ctx, "game-1", 1)
	s.ErrorIs(err, model.ErrRoundNotFound)
	s.Equal(0, s.scheduler.Len())
	s.Empty(s.broadcaster.Named(model.EventNewRound))

	round := s.startRound(1, "round-1")
	s.Equal(1, round.Number)
	s.Equal(model.PhaseAnswering, s.game().Phase)
}

func (s *ControllerSuite) TestVoteWindowStoreFailureKeepsScoresAndRetries() {
	s.startedGame(2)
	s.startRound(1, "round-1") // bob is the impostor
	s.clock.Advance(60 * time.Second)
	s.vote(s.admin, "p-bob")
	s.vote(s.cara, "p-bob")
	s.faults.failUpdateTo(model.PhaseScoring)

	s.clock.Advance(180 * time.Second)

	s.Equal(model.PhaseVoting, s.sessionPhase())
	s.Equal(model.PhaseVoting, s.game().Phase)
	s.Equal(0, s.score("p-admin"))
	s.Equal(0, s.score("p-cara"))
	s.NotContains(s.eventNames(), model.EventRoundResult)
	s.Empty(s.broadcaster.Named(model.EventRoundResult))

	phase, due, ok := s.scheduler.Pending("game-1")
	s.Require().True(ok)
	s.Equal(model.PhaseVoting, phase)
	s.Equal(s.clock.Now().Add(retryInitialDelay), due)

	s.clock.Advance(retryInitialDelay)

	s.Equal(model.PhaseRoundEnd, s.game().Phase)
	s.Equal(2, s.score("p-admin"))
	s.Equal(2, s.score("p-cara"))
	s.Len(s.broadcaster.Named(model.EventRoundResult), 1)
}

func (s *ControllerSuite) TestRoundEndStoreFailureDoesNotStallGame() {
	s.startedGame(2)
	s.startRound(1, "round-1") // bob is the impostor
	s.clock.Advance(60 * time.Second)
	s.vote(s.admin, "p-bob")
	s.faults.failUpdateTo(model.PhaseRoundEnd)

	s.clock.Advance(180 * time.Second)

	// Scoring and the round end commit together, so neither is visible
	s.Equal(model.PhaseVoting, s.game().Phase)
	s.Equal(model.PhaseVoting, s.sessionPhase())
	s.Equal(0, s.score("p-admin"))
	s.NotContains(s.faults.phases(), model.PhaseScoring)

	s.clock.Advance(retryInitialDelay)
	s.Equal(model.PhaseRoundEnd, s.game().Phase)
	s.Equal(2, s.score("p-admin"))

	s.clock.Advance(5 * time.Second)
	s.Equal(model.PhaseQuestionInput, s.game().Phase)

	round := s.startRound(0, "round-2")
	s.Equal(2, round.Number)
}

func (s *ControllerSuite) TestTimedTransitionRetriesWithGrowingBackoff() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.faults.failListPlayers(2)

	s.clock.Advance(60 * time.Second)
	s.Equal(model.PhaseAnswering, s.game().Phase)
	_, due, ok := s.scheduler.Pending("game-1")
	s.Require().True(ok)
	s.Equal(s.clock.Now().Add(time.Second), due)

	s.clock.Advance(time.Second)
	s.Equal(model.PhaseAnswering, s.game().Phase)
	_, due, ok = s.scheduler.Pending("game-1")
	s.Require().True(ok)
	s.Equal(s.clock.Now().Add(2*time.Second), due)

	s.clock.Advance(2 * time.Second)
	game := s.game()
	s.Equal(model.PhaseVoting, game.Phase)
	s.Equal(s.clock.Now().Add(180*time.Second), *game.PhaseEndsAt)
}

func (s *ControllerSuite) TestRetryStopsWhenGameIsAbandoned() {
	s.startedGame(1)
	s.startRound(0, "round-1")
	s.faults.failListPlayers(1)
	s.clock.Advance(60 * time.Second)

	_, err := s.controller.AbandonGame(s.ctx, testCode, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(0, s.scheduler.Len())

	s.clock.Advance(time.Minute)
	s.Equal(model.PhaseAbandoned, s.game().Phase)
	s.Empty(s.broadcaster.Named(model.EventVotingPhase))
}

// Session registry tests

func (s *ControllerSuite) TestAcquireSkipsSessionDroppedWhileWaiting() {
	s.createGame(1)
	stale, err := s.controller.acquire(s.ctx, "game-1")
	s.Require().NoError(err)

	acquired := make(chan *session, 1)
	go func() {
		sess, err := s.controller.acquire(s.ctx, "game-1")
		if err != nil {
			acquired <- nil
			return
		}
		sess.mu.Unlock()
		acquired <- sess
	}()

	// Let the goroutine block on the stale session before dropping it
	time.Sleep(20 * time.Millisecond)
	s.controller.sessions.remove("game-1", stale)
	stale.mu.Unlock()

	sess := <-acquired
	s.Require().NotNil(sess)
	s.NotSame(stale, sess)
	s.True(s.controller.sessions.holds("game-1", sess))
	s.Equal(model.PhaseLobby, sess.game.Phase)
}

func (s *ControllerSuite) TestAcquireUnknownGameLeavesNoSession() {
	_, err := s.controller.acquire(s.ctx, "game-missing")
	s.ErrorIs(err, model.ErrGameNotFound)
	s.Equal(0, s.controller.sessions.len())
}
