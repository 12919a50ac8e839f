package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
)

// Recover re-arms the pending window of every unfinished game after a restart.
// Windows whose deadline has already passed fire immediately. Returns the number of games resumed.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	games, err := c.storage.ListActiveGames(ctx)
	if err != nil {
		return 0, err
	}

	resumed := 0
	var errs []error
	for _, g := range games {
		ok, err := c.recoverGame(ctx, g.ID)
		if err != nil {
			c.logger.Error("failed to recover game",
				slog.String("game_id", string(g.ID)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("game %s: %w", g.ID, err))
			continue
		}
		if ok {
			resumed++
		}
	}

	c.logger.Info("recovery complete",
		slog.Int("active_games", len(games)),
		slog.Int("resumed", resumed),
	)
	return resumed, errors.Join(errs...)
}

func (c *Controller) recoverGame(ctx context.Context, gameID model.GameID) (bool, error) {
	s, err := c.acquire(ctx, gameID)
	if err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	game := s.game
	if game.Phase.IsTimed() {
		window, handler := c.window(game.Phase)
		return true, c.arm(game, c.remaining(game, window), handler)
	}
	if game.Phase != model.PhaseScoring {
		return false, nil
	}

	// Scores were applied together with the move to SCORING
	players, err := c.storage.ListPlayers(ctx, gameID)
	if err != nil {
		return false, err
	}
	return true, c.evaluateRoundEnd(ctx, s, players)
}

// window returns the length of a timed phase and the transition that closes it
func (c *Controller) window(phase model.Phase) (time.Duration, timedTransition) {
	switch phase {
	case model.PhaseAnswering:
		return c.timings.AnswerWindow, c.answerWindowExpired
	case model.PhaseVoting:
		return c.timings.VoteWindow, c.voteWindowExpired
	default:
		return c.timings.InterRoundPause, c.interRoundPauseExpired
	}
}

// remaining returns the time left in the game's window, or the full window if no deadline was stored
func (c *Controller) remaining(game *model.Game, full time.Duration) time.Duration {
	if game.PhaseEndsAt == nil {
		return full
	}
	left := game.PhaseEndsAt.Sub(c.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Shutdown cancels every pending window; games resume on the next Recover
func (c *Controller) Shutdown() {
	c.scheduler.Stop()
	c.logger.Info("game controller stopped", slog.Int("open_sessions", c.sessions.len()))
}
