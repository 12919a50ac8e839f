package game

import (
	"context"
	"errors"
	"sync"

	"github.com/mcoot/impostorgame/internal/model"
)

// session caches the state of one active game.
// mu serializes every action and timer callback for that game.
type session struct {
	mu    sync.Mutex
	game  *model.Game
	round *model.Round // nil before the first round
}

// registry holds the sessions of games this process has touched
type registry struct {
	mu       sync.Mutex
	sessions map[model.GameID]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[model.GameID]*session)}
}

func (r *registry) get(id model.GameID) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &session{}
		r.sessions[id] = s
	}
	return s
}

// remove drops the session only if it is still the one registered for id
func (r *registry) remove(id model.GameID, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] == s {
		delete(r.sessions, id)
	}
}

// holds reports whether s is the session registered for id
func (r *registry) holds(id model.GameID, s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id] == s
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// acquire locks the game's session, loading it from storage on first use.
// The caller must unlock s.mu.
func (c *Controller) acquire(ctx context.Context, gameID model.GameID) (*session, error) {
	for {
		s := c.sessions.get(gameID)
		s.mu.Lock()
		// A failed load or a finished game may have dropped s while we waited
		if !c.sessions.holds(gameID, s) {
			s.mu.Unlock()
			continue
		}
		if s.game != nil {
			return s, nil
		}

		if err := c.load(ctx, s, gameID); err != nil {
			c.sessions.remove(gameID, s)
			s.mu.Unlock()
			return nil, err
		}
		c.release(s)
		return s, nil
	}
}

// acquireByCode resolves a join code and locks that game's session
func (c *Controller) acquireByCode(ctx context.Context, code string) (*session, error) {
	game, err := c.storage.GetGameByCode(ctx, model.NormalizeGameCode(code))
	if err != nil {
		return nil, err
	}
	return c.acquire(ctx, game.ID)
}

func (c *Controller) load(ctx context.Context, s *session, gameID model.GameID) error {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return err
	}

	var round *model.Round
	if game.CurrentRound > 0 {
		round, err = c.storage.GetRound(ctx, gameID, game.CurrentRound)
		if err != nil && !errors.Is(err, model.ErrRoundNotFound) {
			return err
		}
	}

	s.game = game
	s.round = round
	return nil
}

// release forgets a session once its game has reached a terminal phase
func (c *Controller) release(s *session) {
	if s.game != nil && s.game.Phase.IsTerminal() {
		c.sessions.remove(s.game.ID, s)
	}
}
