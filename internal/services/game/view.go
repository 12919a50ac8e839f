package game

import (
	"context"

	"github.com/mcoot/impostorgame/internal/model"
)

// GameView is a read-only snapshot of a game as seen by one user
type GameView struct {
	Game    *model.Game
	Players []*model.Player
	// Self is nil when the user is not a player in the game
	Self  *model.Player
	Round *RoundView
}

// RoundView describes the current round from one player's point of view
type RoundView struct {
	Number   int
	Role     model.Role
	Question string
	Answered bool
	Voted    bool
	// Answers is filled once the vote window has opened
	Answers []model.AnswerEntry
}

// GetGameView returns the current state of a game for the given user
func (c *Controller) GetGameView(ctx context.Context, code string, userID model.UserID) (*GameView, error) {
	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	players, err := c.storage.ListPlayers(ctx, s.game.ID)
	if err != nil {
		return nil, err
	}

	game := *s.game
	view := &GameView{
		Game:    &game,
		Players: players,
		Self:    model.FindPlayerByUser(players, userID),
	}
	if view.Self == nil || s.round == nil {
		return view, nil
	}

	role, question := s.round.QuestionFor(view.Self.ID)
	rv := &RoundView{
		Number:   s.round.Number,
		Role:     role,
		Question: question,
	}

	subs, err := c.storage.ListSubmissions(ctx, s.round.ID)
	if err != nil {
		return nil, err
	}
	answers := make(map[model.PlayerID]string)
	for _, sub := range subs {
		if sub.PlayerID == view.Self.ID {
			rv.Answered = sub.HasAnswer()
			rv.Voted = sub.HasVote()
		}
		if sub.HasAnswer() {
			answers[sub.PlayerID] = *sub.Answer
		}
	}

	if s.game.Phase != model.PhaseAnswering {
		rv.Answers = make([]model.AnswerEntry, 0, len(answers))
		for _, p := range players {
			if answer, ok := answers[p.ID]; ok {
				rv.Answers = append(rv.Answers, model.AnswerEntry{Player: model.SummarizePlayer(p), Answer: answer})
			}
		}
	}

	view.Round = rv
	return view, nil
}
