package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/services/scoring"
	"github.com/mcoot/impostorgame/internal/storage"
)

// SubmitQuestions creates the next round from the admin's question pair and opens the answer window
func (c *Controller) SubmitQuestions(ctx context.Context, code string, userID model.UserID, original, impostor string) (*model.Round, error) {
	original = strings.TrimSpace(original)
	impostor = strings.TrimSpace(impostor)
	if original == "" || impostor == "" {
		return nil, model.ErrInvalidQuestion
	}

	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if !s.game.IsAdmin(userID) {
		return nil, model.ErrNotAdmin
	}
	if err := requirePhase(s.game, model.PhaseQuestionInput); err != nil {
		return nil, err
	}
	if !s.game.RoundsRemaining() {
		return nil, model.ErrGameFinished
	}

	players, err := c.storage.ListPlayers(ctx, s.game.ID)
	if err != nil {
		return nil, err
	}
	var candidates []*model.Player
	for _, p := range players {
		if p.Active {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, model.ErrInsufficientPlayers
	}
	chosen := candidates[c.random.Intn(len(candidates))]

	now := c.clock.Now()
	round := &model.Round{
		ID:               model.RoundID(c.random.ID()),
		GameID:           s.game.ID,
		Number:           s.game.CurrentRound + 1,
		OriginalQuestion: original,
		ImpostorQuestion: impostor,
		ImpostorID:       chosen.ID,
		CreatedAt:        now,
	}
	endsAt := now.Add(c.timings.AnswerWindow)
	next, err := s.game.Advance(model.PhaseAnswering, now, &endsAt)
	if err != nil {
		return nil, err
	}
	next.CurrentRound = round.Number

	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.CreateRound(ctx, round); err != nil {
			return err
		}
		return tx.UpdateGame(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	s.game = next
	s.round = round

	c.logger.Info("round started",
		slog.String("game_id", string(next.ID)),
		slog.Int("round", round.Number),
		slog.Int("player_count", len(players)),
	)

	if err := c.arm(next, c.timings.AnswerWindow, c.answerWindowExpired); err != nil {
		c.logger.Error("failed to arm answer timer",
			slog.String("game_id", string(next.ID)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", model.ErrSchedulingFailure, err)
	}

	for _, p := range players {
		role, question := round.QuestionFor(p.ID)
		c.broadcaster.SendToUser(ctx, next.ID, p.UserID, model.EventNewRound, model.NewRoundPayload{
			RoundNumber: round.Number,
			Role:        role,
			Question:    question,
			EndsAt:      endsAt,
		})
	}

	out := *round
	return &out, nil
}

// SubmitAnswer records the user's answer for the current round.
// Answers outside the answer window, or from non-players, are dropped without error.
func (c *Controller) SubmitAnswer(ctx context.Context, code string, userID model.UserID, answer string) error {
	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.game.Phase != model.PhaseAnswering || s.round == nil {
		c.logger.Debug("late answer dropped",
			slog.String("game_id", string(s.game.ID)),
			slog.String("phase", string(s.game.Phase)),
		)
		return nil
	}

	player, err := c.storage.GetPlayerByUser(ctx, s.game.ID, userID)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return model.ErrInvalidAnswer
	}
	return c.storage.UpsertAnswer(ctx, s.round.ID, player.ID, answer, c.clock.Now())
}

// SubmitVote records the user's vote for the current round and broadcasts the running tally.
// Votes outside the vote window, from non-players or for non-players are dropped without error.
func (c *Controller) SubmitVote(ctx context.Context, code string, userID model.UserID, votedFor model.PlayerID) error {
	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.game.Phase != model.PhaseVoting || s.round == nil {
		c.logger.Debug("late vote dropped",
			slog.String("game_id", string(s.game.ID)),
			slog.String("phase", string(s.game.Phase)),
		)
		return nil
	}

	voter, err := c.storage.GetPlayerByUser(ctx, s.game.ID, userID)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	votee, err := c.storage.GetPlayer(ctx, votedFor)
	if errors.Is(err, model.ErrPlayerNotFound) || (err == nil && votee.GameID != s.game.ID) {
		return nil
	}
	if err != nil {
		return err
	}

	votes, err := c.roundVotes(ctx, s.round.ID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range votes {
		if votes[i].Voter == voter.ID {
			votes[i].VotedFor = votee.ID
			replaced = true
		}
	}
	if !replaced {
		votes = append(votes, scoring.Vote{Voter: voter.ID, VotedFor: votee.ID})
	}

	now := c.clock.Now()
	payload := model.VoteReceivedPayload{
		RoundNumber: s.round.Number,
		Voter:       voter.ID,
		VotedFor:    votee.ID,
		Tally:       c.scoringService.Tally(votes),
	}
	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpsertVote(ctx, s.round.ID, voter.ID, votee.ID, now); err != nil {
			return err
		}
		return record(ctx, tx, s.game.ID, model.EventVoteReceived, payload, now)
	})
	if err != nil {
		return err
	}

	c.broadcaster.BroadcastToGame(ctx, s.game.ID, model.EventVoteReceived, payload)
	return nil
}

// roundVotes returns the votes recorded so far for a round
func (c *Controller) roundVotes(ctx context.Context, roundID model.RoundID) ([]scoring.Vote, error) {
	subs, err := c.storage.ListSubmissions(ctx, roundID)
	if err != nil {
		return nil, err
	}
	var votes []scoring.Vote
	for _, sub := range subs {
		if sub.HasVote() {
			votes = append(votes, scoring.Vote{Voter: sub.PlayerID, VotedFor: *sub.VotedFor})
		}
	}
	return votes, nil
}

// timedTransition handles expiry of a window opened for the given round
type timedTransition func(ctx context.Context, gameID model.GameID, round int) error

// Backoff for timed transitions that fail to persist
const (
	retryInitialDelay = time.Second
	retryMaxDelay     = 30 * time.Second
)

// arm schedules handler for the game's current phase and round
func (c *Controller) arm(game *model.Game, d time.Duration, handler timedTransition) error {
	return c.schedule(game.ID, game.Phase, game.CurrentRound, d, retryInitialDelay, handler)
}

// schedule runs handler after d. A failed run is scheduled again after backoff,
// doubling up to retryMaxDelay, until it succeeds or the game no longer exists.
func (c *Controller) schedule(gameID model.GameID, phase model.Phase, round int, d, backoff time.Duration, handler timedTransition) error {
	return c.scheduler.Arm(gameID, phase, d, func() {
		err := handler(context.Background(), gameID, round)
		if err == nil {
			return
		}

		logger := c.logger.With(
			slog.String("game_id", string(gameID)),
			slog.String("phase", string(phase)),
			slog.Int("round", round),
		)
		if errors.Is(err, model.ErrSchedulingFailure) || errors.Is(err, model.ErrGameNotFound) {
			logger.Error("timed transition failed", slog.String("error", err.Error()))
			return
		}

		logger.Warn("timed transition failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", backoff),
		)
		if err := c.schedule(gameID, phase, round, backoff, min(2*backoff, retryMaxDelay), handler); err != nil {
			logger.Error("failed to schedule retry", slog.String("error", err.Error()))
		}
	})
}

// answerWindowExpired closes answering and opens the vote window
func (c *Controller) answerWindowExpired(ctx context.Context, gameID model.GameID, round int) error {
	s, err := c.acquire(ctx, gameID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.game.Phase != model.PhaseAnswering || s.game.CurrentRound != round || s.round == nil {
		return nil
	}

	players, err := c.storage.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	subs, err := c.storage.ListSubmissions(ctx, s.round.ID)
	if err != nil {
		return err
	}
	answered := make(map[model.PlayerID]string, len(subs))
	for _, sub := range subs {
		if sub.HasAnswer() {
			answered[sub.PlayerID] = *sub.Answer
		}
	}
	answers := make([]model.AnswerEntry, 0, len(answered))
	for _, p := range players {
		if answer, ok := answered[p.ID]; ok {
			answers = append(answers, model.AnswerEntry{Player: model.SummarizePlayer(p), Answer: answer})
		}
	}

	now := c.clock.Now()
	endsAt := now.Add(c.timings.VoteWindow)
	next, err := s.game.Advance(model.PhaseVoting, now, &endsAt)
	if err != nil {
		return err
	}
	payload := model.VotingPhasePayload{
		RoundNumber: round,
		Answers:     answers,
		EndsAt:      endsAt,
	}

	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpdateGame(ctx, next); err != nil {
			return err
		}
		return record(ctx, tx, gameID, model.EventVotingPhase, payload, now)
	})
	if err != nil {
		return err
	}
	s.game = next

	c.logger.Info("voting opened",
		slog.String("game_id", string(gameID)),
		slog.Int("round", round),
		slog.Int("answer_count", len(answers)),
	)
	c.broadcaster.BroadcastToGame(ctx, gameID, model.EventVotingPhase, payload)

	if err := c.arm(next, c.timings.VoteWindow, c.voteWindowExpired); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSchedulingFailure, err)
	}
	return nil
}

// voteWindowExpired closes voting, applies the round's scores and evaluates whether the game is over
func (c *Controller) voteWindowExpired(ctx context.Context, gameID model.GameID, round int) error {
	s, err := c.acquire(ctx, gameID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.game.Phase != model.PhaseVoting || s.game.CurrentRound != round || s.round == nil {
		return nil
	}

	players, err := c.storage.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	votes, err := c.roundVotes(ctx, s.round.ID)
	if err != nil {
		return err
	}

	result := c.scoringService.ScoreRound(s.round.ImpostorID, model.PlayerIDs(players), votes)

	var impostor model.PlayerSummary
	for _, p := range players {
		p.Score += result.Deltas[p.ID]
		if p.ID == s.round.ImpostorID {
			impostor = model.SummarizePlayer(p)
		}
	}

	now := c.clock.Now()
	scored, err := s.game.Advance(model.PhaseScoring, now, nil)
	if err != nil {
		return err
	}
	end, err := c.planRoundEnd(scored, players, now)
	if err != nil {
		return err
	}
	payload := model.RoundResultPayload{
		RoundNumber:      round,
		Impostor:         impostor,
		OriginalQuestion: s.round.OriginalQuestion,
		ImpostorQuestion: s.round.ImpostorQuestion,
		Outcome:          result.Outcome,
		Tally:            result.Tally,
		Deltas:           result.Deltas,
		Scores:           c.scoreboard(players),
	}

	// SCORING is only ever persisted together with the move out of it
	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpdateGame(ctx, scored); err != nil {
			return err
		}
		if len(result.Deltas) > 0 {
			if err := tx.IncrementScores(ctx, gameID, result.Deltas); err != nil {
				return err
			}
		}
		if err := record(ctx, tx, gameID, model.EventRoundResult, payload, now); err != nil {
			return err
		}
		return end.write(ctx, tx)
	})
	if err != nil {
		return err
	}

	c.logger.Info("round scored",
		slog.String("game_id", string(gameID)),
		slog.Int("round", round),
		slog.String("outcome", string(result.Outcome)),
		slog.Int("vote_count", len(votes)),
	)
	c.broadcaster.BroadcastToGame(ctx, gameID, model.EventRoundResult, payload)

	return c.finishRoundEnd(ctx, s, end)
}

// roundEnd is the planned move out of SCORING: GAME_OVER after the last round,
// otherwise ROUND_END with the inter-round pause running
type roundEnd struct {
	game     *model.Game
	gameOver *model.GameOverPayload
	at       time.Time
}

func (e *roundEnd) write(ctx context.Context, tx storage.Storage) error {
	if err := tx.UpdateGame(ctx, e.game); err != nil {
		return err
	}
	if e.gameOver != nil {
		return record(ctx, tx, e.game.ID, model.EventGameOver, *e.gameOver, e.at)
	}
	return nil
}

// planRoundEnd decides where a game in SCORING goes next. players carry the updated scores.
func (c *Controller) planRoundEnd(scored *model.Game, players []*model.Player, now time.Time) (*roundEnd, error) {
	if !scored.RoundsRemaining() {
		next, err := scored.Advance(model.PhaseGameOver, now, nil)
		if err != nil {
			return nil, err
		}
		return &roundEnd{
			game:     next,
			gameOver: &model.GameOverPayload{FinalScores: c.scoreboard(players)},
			at:       now,
		}, nil
	}

	endsAt := now.Add(c.timings.InterRoundPause)
	next, err := scored.Advance(model.PhaseRoundEnd, now, &endsAt)
	if err != nil {
		return nil, err
	}
	return &roundEnd{game: next, at: now}, nil
}

// finishRoundEnd applies a persisted round end to the session. Caller holds s.mu.
func (c *Controller) finishRoundEnd(ctx context.Context, s *session, end *roundEnd) error {
	gameID := end.game.ID
	s.game = end.game

	if end.gameOver != nil {
		c.scheduler.Cancel(gameID)
		c.release(s)

		c.logger.Info("game over",
			slog.String("game_id", string(gameID)),
			slog.Int("rounds", end.game.TotalRounds),
		)
		c.broadcaster.BroadcastToGame(ctx, gameID, model.EventGameOver, *end.gameOver)
		return nil
	}

	if err := c.arm(end.game, c.timings.InterRoundPause, c.interRoundPauseExpired); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSchedulingFailure, err)
	}
	return nil
}

// evaluateRoundEnd moves a game found persisted in SCORING to its round end.
// Caller holds s.mu.
func (c *Controller) evaluateRoundEnd(ctx context.Context, s *session, players []*model.Player) error {
	end, err := c.planRoundEnd(s.game, players, c.clock.Now())
	if err != nil {
		return err
	}
	if err := c.storage.Atomically(ctx, func(tx storage.Storage) error {
		return end.write(ctx, tx)
	}); err != nil {
		return err
	}
	return c.finishRoundEnd(ctx, s, end)
}

// interRoundPauseExpired returns the game to QUESTION_INPUT for the next round
func (c *Controller) interRoundPauseExpired(ctx context.Context, gameID model.GameID, round int) error {
	s, err := c.acquire(ctx, gameID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.game.Phase != model.PhaseRoundEnd || s.game.CurrentRound != round {
		return nil
	}

	now := c.clock.Now()
	next, err := s.game.Advance(model.PhaseQuestionInput, now, nil)
	if err != nil {
		return err
	}
	payload := model.NextRoundReadyPayload{RoundNumber: round + 1}

	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpdateGame(ctx, next); err != nil {
			return err
		}
		return record(ctx, tx, gameID, model.EventNextRoundReady, payload, now)
	})
	if err != nil {
		return err
	}
	s.game = next

	c.broadcaster.BroadcastToGame(ctx, gameID, model.EventNextRoundReady, payload)
	c.broadcaster.SendToUser(ctx, gameID, next.AdminID, model.EventNextRoundReady, model.NextRoundReadyPayload{
		RoundNumber:       round + 1,
		AwaitingQuestions: true,
	})
	return nil
}
