package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu   *sync.RWMutex
	data *data

	// held is set on the view handed to Atomically callbacks, which already own mu
	held bool
	// undo collects the inverse of every write made through a held view
	undo *[]func()
}

type data struct {
	users       map[model.UserID]model.User
	games       map[model.GameID]model.Game
	codeIndex   map[model.GameCode]model.GameID
	players     map[model.PlayerID]model.Player
	gamePlayers map[model.GameID][]model.PlayerID
	rounds      map[roundKey]model.Round
	submissions map[model.RoundID][]model.Submission
	events      map[model.GameID][]model.GameEvent
}

type roundKey struct {
	gameID model.GameID
	number int
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		mu: &sync.RWMutex{},
		data: &data{
			users:       make(map[model.UserID]model.User),
			games:       make(map[model.GameID]model.Game),
			codeIndex:   make(map[model.GameCode]model.GameID),
			players:     make(map[model.PlayerID]model.Player),
			gamePlayers: make(map[model.GameID][]model.PlayerID),
			rounds:      make(map[roundKey]model.Round),
			submissions: make(map[model.RoundID][]model.Submission),
			events:      make(map[model.GameID][]model.GameEvent),
		},
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) lock() func() {
	if s.held {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Storage) rlock() func() {
	if s.held {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// Atomically runs fn while holding the write lock; on error every write is undone in reverse order
func (s *Storage) Atomically(ctx context.Context, fn func(tx storage.Storage) error) error {
	if s.held {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	tx := &Storage{mu: s.mu, data: s.data, held: true, undo: &undo}
	if err := fn(tx); err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

// journal records how to undo a write when running inside Atomically. Caller holds mu.
func (s *Storage) journal(revert func()) {
	if s.undo != nil {
		*s.undo = append(*s.undo, revert)
	}
}

// restoreKey returns a func that puts m[k] back to its current state
func restoreKey[K comparable, V any](m map[K]V, k K) func() {
	old, had := m[k]
	return func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	}
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	defer s.lock()()
	s.journal(restoreKey(s.data.users, user.ID))
	s.data.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	defer s.rlock()()
	user, ok := s.data.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &user, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	defer s.lock()()
	if _, taken := s.data.codeIndex[game.Code]; taken {
		return model.ErrGameCodeTaken
	}
	s.journal(restoreKey(s.data.games, game.ID))
	s.journal(restoreKey(s.data.codeIndex, game.Code))
	s.data.games[game.ID] = copyGame(game)
	s.data.codeIndex[game.Code] = game.ID
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	defer s.rlock()()
	game, ok := s.data.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	out := copyGame(&game)
	return &out, nil
}

func (s *Storage) GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	defer s.rlock()()
	id, ok := s.data.codeIndex[code]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	game := copyGame(ptr(s.data.games[id]))
	return &game, nil
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game) error {
	defer s.lock()()
	if _, ok := s.data.games[game.ID]; !ok {
		return model.ErrGameNotFound
	}
	s.journal(restoreKey(s.data.games, game.ID))
	s.data.games[game.ID] = copyGame(game)
	return nil
}

func (s *Storage) ListActiveGames(ctx context.Context) ([]*model.Game, error) {
	defer s.rlock()()
	var games []*model.Game
	for _, g := range s.data.games {
		if g.Phase.IsTerminal() {
			continue
		}
		game := copyGame(&g)
		games = append(games, &game)
	}
	sort.Slice(games, func(i, j int) bool {
		if games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].ID < games[j].ID
		}
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})
	return games, nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	defer s.lock()()
	for _, id := range s.data.gamePlayers[player.GameID] {
		if s.data.players[id].UserID == player.UserID {
			return model.ErrAlreadyJoined
		}
	}
	s.journal(restoreKey(s.data.players, player.ID))
	s.journal(restoreKey(s.data.gamePlayers, player.GameID))
	s.data.players[player.ID] = *player
	s.data.gamePlayers[player.GameID] = append(s.data.gamePlayers[player.GameID], player.ID)
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	defer s.rlock()()
	player, ok := s.data.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *Storage) GetPlayerByUser(ctx context.Context, gameID model.GameID, userID model.UserID) (*model.Player, error) {
	defer s.rlock()()
	for _, id := range s.data.gamePlayers[gameID] {
		if player := s.data.players[id]; player.UserID == userID {
			return &player, nil
		}
	}
	return nil, model.ErrPlayerNotFound
}

func (s *Storage) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	defer s.rlock()()
	ids := s.data.gamePlayers[gameID]
	players := make([]*model.Player, 0, len(ids))
	for _, id := range ids {
		player := s.data.players[id]
		players = append(players, &player)
	}
	return players, nil
}

func (s *Storage) SetPlayerActive(ctx context.Context, id model.PlayerID, active bool) error {
	defer s.lock()()
	player, ok := s.data.players[id]
	if !ok {
		return model.ErrPlayerNotFound
	}
	s.journal(restoreKey(s.data.players, id))
	player.Active = active
	s.data.players[id] = player
	return nil
}

func (s *Storage) IncrementScores(ctx context.Context, gameID model.GameID, deltas map[model.PlayerID]int) error {
	defer s.lock()()
	for id := range deltas {
		if player, ok := s.data.players[id]; !ok || player.GameID != gameID {
			return model.ErrPlayerNotFound
		}
	}
	for id, delta := range deltas {
		s.journal(restoreKey(s.data.players, id))
		player := s.data.players[id]
		player.Score += delta
		s.data.players[id] = player
	}
	return nil
}

// Round operations

func (s *Storage) CreateRound(ctx context.Context, round *model.Round) error {
	defer s.lock()()
	key := roundKey{round.GameID, round.Number}
	if _, exists := s.data.rounds[key]; exists {
		return model.ErrRoundExists
	}
	s.journal(restoreKey(s.data.rounds, key))
	s.data.rounds[key] = *round
	return nil
}

func (s *Storage) GetRound(ctx context.Context, gameID model.GameID, number int) (*model.Round, error) {
	defer s.rlock()()
	round, ok := s.data.rounds[roundKey{gameID, number}]
	if !ok {
		return nil, model.ErrRoundNotFound
	}
	return &round, nil
}

// Submission operations

func (s *Storage) UpsertAnswer(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, answer string, at time.Time) error {
	defer s.lock()()
	s.upsert(roundID, playerID, at, func(sub *model.Submission) {
		sub.Answer = &answer
	})
	return nil
}

func (s *Storage) UpsertVote(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, votedFor model.PlayerID, at time.Time) error {
	defer s.lock()()
	s.upsert(roundID, playerID, at, func(sub *model.Submission) {
		sub.VotedFor = &votedFor
	})
	return nil
}

// upsert applies set to the (round, player) submission, creating it if needed. Caller holds mu.
func (s *Storage) upsert(roundID model.RoundID, playerID model.PlayerID, at time.Time, set func(*model.Submission)) {
	s.journal(restoreKey(s.data.submissions, roundID))
	subs := s.data.submissions[roundID]
	for i := range subs {
		if subs[i].PlayerID == playerID {
			// Replace rather than mutate: the undo journal and earlier readers share the old backing array
			updated := subs[i]
			set(&updated)
			updated.UpdatedAt = at
			next := append([]model.Submission(nil), subs...)
			next[i] = updated
			s.data.submissions[roundID] = next
			return
		}
	}
	sub := model.Submission{RoundID: roundID, PlayerID: playerID, UpdatedAt: at}
	set(&sub)
	s.data.submissions[roundID] = append(subs, sub)
}

func (s *Storage) ListSubmissions(ctx context.Context, roundID model.RoundID) ([]*model.Submission, error) {
	defer s.rlock()()
	subs := s.data.submissions[roundID]
	out := make([]*model.Submission, len(subs))
	for i := range subs {
		sub := subs[i]
		out[i] = &sub
	}
	return out, nil
}

// Event log operations

func (s *Storage) AppendEvent(ctx context.Context, event *model.GameEvent) error {
	defer s.lock()()
	s.journal(restoreKey(s.data.events, event.GameID))
	s.data.events[event.GameID] = append(s.data.events[event.GameID], *event)
	return nil
}

func (s *Storage) ListEvents(ctx context.Context, gameID model.GameID) ([]*model.GameEvent, error) {
	defer s.rlock()()
	events := s.data.events[gameID]
	out := make([]*model.GameEvent, len(events))
	for i := range events {
		event := events[i]
		out[i] = &event
	}
	return out, nil
}

func copyGame(g *model.Game) model.Game {
	cp := *g
	if g.PhaseEndsAt != nil {
		endsAt := *g.PhaseEndsAt
		cp.PhaseEndsAt = &endsAt
	}
	return cp
}

func ptr[T any](v T) *T {
	return &v
}
