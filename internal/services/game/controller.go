package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mcoot/impostorgame/internal/dependencies/clock"
	"github.com/mcoot/impostorgame/internal/dependencies/random"
	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/services/scheduler"
	"github.com/mcoot/impostorgame/internal/services/scoring"
	"github.com/mcoot/impostorgame/internal/storage"
)

// maxCodeAttempts bounds join code generation when codes collide
const maxCodeAttempts = 10

// Timings configures the length of each timed window
type Timings struct {
	AnswerWindow    time.Duration
	VoteWindow      time.Duration
	InterRoundPause time.Duration
}

// DefaultTimings returns the standard window lengths
func DefaultTimings() Timings {
	return Timings{
		AnswerWindow:    60 * time.Second,
		VoteWindow:      180 * time.Second,
		InterRoundPause: 5 * time.Second,
	}
}

// Controller runs the phase state machine of every game
type Controller struct {
	storage        storage.Storage
	scoringService *scoring.Service
	scheduler      *scheduler.Scheduler
	broadcaster    Broadcaster
	clock          clock.Clock
	random         random.Random
	timings        Timings
	logger         *slog.Logger

	sessions *registry
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	scoringService *scoring.Service,
	scheduler *scheduler.Scheduler,
	broadcaster Broadcaster,
	clock clock.Clock,
	random random.Random,
	timings Timings,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:        storage,
		scoringService: scoringService,
		scheduler:      scheduler,
		broadcaster:    broadcaster,
		clock:          clock,
		random:         random,
		timings:        timings,
		logger:         logger,
		sessions:       newRegistry(),
	}
}

// requirePhase checks the game is in the given phase
func requirePhase(game *model.Game, phase model.Phase) error {
	if game.Phase.IsTerminal() {
		return model.ErrGameFinished
	}
	if game.Phase != phase {
		return model.ErrWrongPhase
	}
	return nil
}

// record appends a broadcast event to the game's log within tx
func record(ctx context.Context, tx storage.Storage, gameID model.GameID, name model.EventName, payload any, at time.Time) error {
	event, err := model.NewGameEvent(gameID, name, payload, at)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, event)
}

// CreateGame creates a game in the LOBBY phase with the user as admin and first player
func (c *Controller) CreateGame(ctx context.Context, user *model.User, totalRounds int) (*model.Game, *model.Player, error) {
	if totalRounds <= 0 {
		return nil, nil, model.ErrInvalidRounds
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := model.GameCode(c.random.String(model.GameCodeLength, model.GameCodeAlphabet))
		if _, err := c.storage.GetGameByCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, model.ErrGameNotFound) {
			return nil, nil, err
		}

		now := c.clock.Now()
		game := &model.Game{
			ID:          model.GameID(c.random.ID()),
			Code:        code,
			AdminID:     user.ID,
			TotalRounds: totalRounds,
			Phase:       model.PhaseLobby,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		admin := &model.Player{
			ID:          model.PlayerID(c.random.ID()),
			GameID:      game.ID,
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			Active:      true,
			JoinedAt:    now,
		}

		err := c.storage.Atomically(ctx, func(tx storage.Storage) error {
			if err := tx.CreateGame(ctx, game); err != nil {
				return err
			}
			return tx.CreatePlayer(ctx, admin)
		})
		if errors.Is(err, model.ErrGameCodeTaken) {
			continue
		}
		if err != nil {
			c.logger.Error("failed to create game",
				slog.String("user_id", string(user.ID)),
				slog.String("error", err.Error()),
			)
			return nil, nil, err
		}

		c.logger.Info("game created",
			slog.String("game_id", string(game.ID)),
			slog.String("game_code", string(game.Code)),
			slog.String("admin_id", string(user.ID)),
			slog.Int("total_rounds", totalRounds),
		)
		return game, admin, nil
	}

	return nil, nil, model.ErrGameCodeTaken
}

// JoinGame adds the user to a game in the LOBBY phase.
// Joining again returns the existing player in any phase.
func (c *Controller) JoinGame(ctx context.Context, code string, user *model.User) (*model.Game, *model.Player, error) {
	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()

	existing, err := c.storage.GetPlayerByUser(ctx, s.game.ID, user.ID)
	if err == nil {
		game := *s.game
		return &game, existing, nil
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, nil, err
	}

	if err := requirePhase(s.game, model.PhaseLobby); err != nil {
		return nil, nil, err
	}

	now := c.clock.Now()
	player := &model.Player{
		ID:          model.PlayerID(c.random.ID()),
		GameID:      s.game.ID,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Active:      true,
		JoinedAt:    now,
	}

	players, err := c.storage.ListPlayers(ctx, s.game.ID)
	if err != nil {
		return nil, nil, err
	}
	payload := model.PlayerUpdatePayload{Players: model.SummarizePlayers(append(players, player))}

	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.CreatePlayer(ctx, player); err != nil {
			return err
		}
		return record(ctx, tx, s.game.ID, model.EventPlayerUpdate, payload, now)
	})
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("player joined",
		slog.String("game_id", string(s.game.ID)),
		slog.String("player_id", string(player.ID)),
		slog.String("user_id", string(user.ID)),
	)
	c.broadcaster.BroadcastToGame(ctx, s.game.ID, model.EventPlayerUpdate, payload)

	game := *s.game
	return &game, player, nil
}

// StartGame moves a game from LOBBY to QUESTION_INPUT
func (c *Controller) StartGame(ctx context.Context, code string, userID model.UserID) (*model.Game, error) {
	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if !s.game.IsAdmin(userID) {
		return nil, model.ErrNotAdmin
	}
	if err := requirePhase(s.game, model.PhaseLobby); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	next, err := s.game.Advance(model.PhaseQuestionInput, now, nil)
	if err != nil {
		return nil, err
	}
	payload := model.GameStartedPayload{GameCode: next.Code, TotalRounds: next.TotalRounds}

	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpdateGame(ctx, next); err != nil {
			return err
		}
		return record(ctx, tx, next.ID, model.EventGameStarted, payload, now)
	})
	if err != nil {
		return nil, err
	}
	s.game = next

	c.logger.Info("game started", slog.String("game_id", string(next.ID)))
	c.broadcaster.BroadcastToGame(ctx, next.ID, model.EventGameStarted, payload)

	game := *next
	return &game, nil
}

// AbandonGame ends a game early at the admin's request
func (c *Controller) AbandonGame(ctx context.Context, code string, userID model.UserID) (*model.Game, error) {
	s, err := c.acquireByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if !s.game.IsAdmin(userID) {
		return nil, model.ErrNotAdmin
	}
	if s.game.Phase.IsTerminal() {
		return nil, model.ErrGameFinished
	}

	players, err := c.storage.ListPlayers(ctx, s.game.ID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	next, err := s.game.Advance(model.PhaseAbandoned, now, nil)
	if err != nil {
		return nil, err
	}
	payload := model.GameOverPayload{
		FinalScores: c.scoreboard(players),
		Abandoned:   true,
	}

	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.UpdateGame(ctx, next); err != nil {
			return err
		}
		return record(ctx, tx, next.ID, model.EventGameAbandoned, payload, now)
	})
	if err != nil {
		return nil, err
	}
	s.game = next
	c.scheduler.Cancel(next.ID)
	c.release(s)

	c.logger.Info("game abandoned", slog.String("game_id", string(next.ID)))
	c.broadcaster.BroadcastToGame(ctx, next.ID, model.EventGameAbandoned, payload)

	game := *next
	return &game, nil
}

// SetPlayerConnected records a client connecting to or leaving a game
func (c *Controller) SetPlayerConnected(ctx context.Context, gameID model.GameID, userID model.UserID, connected bool) error {
	s, err := c.acquire(ctx, gameID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.game.Phase.IsTerminal() {
		return nil
	}

	players, err := c.storage.ListPlayers(ctx, gameID)
	if err != nil {
		return err
	}
	player := model.FindPlayerByUser(players, userID)
	if player == nil {
		return model.ErrNotInGame
	}
	if player.Active == connected {
		return nil
	}
	player.Active = connected

	now := c.clock.Now()
	payload := model.PlayerUpdatePayload{Players: model.SummarizePlayers(players)}
	err = c.storage.Atomically(ctx, func(tx storage.Storage) error {
		if err := tx.SetPlayerActive(ctx, player.ID, connected); err != nil {
			return err
		}
		return record(ctx, tx, gameID, model.EventPlayerUpdate, payload, now)
	})
	if err != nil {
		return err
	}

	c.logger.Debug("player connection changed",
		slog.String("game_id", string(gameID)),
		slog.String("player_id", string(player.ID)),
		slog.Bool("connected", connected),
	)
	c.broadcaster.BroadcastToGame(ctx, gameID, model.EventPlayerUpdate, payload)
	return nil
}

// ListEvents returns a game's event log, oldest first
func (c *Controller) ListEvents(ctx context.Context, code string) ([]*model.GameEvent, error) {
	game, err := c.storage.GetGameByCode(ctx, model.NormalizeGameCode(code))
	if err != nil {
		return nil, err
	}
	return c.storage.ListEvents(ctx, game.ID)
}

// scoreboard returns players as score entries, highest first
func (c *Controller) scoreboard(players []*model.Player) []model.ScoreEntry {
	standings := c.scoringService.Standings(players)
	entries := make([]model.ScoreEntry, len(standings))
	for i, p := range standings {
		entries[i] = model.ScoreEntry{Player: model.SummarizePlayer(p), Score: p.Score}
	}
	return entries
}

// Interface for dependency injection
type ControllerInterface interface {
	CreateGame(ctx context.Context, user *model.User, totalRounds int) (*model.Game, *model.Player, error)
	JoinGame(ctx context.Context, code string, user *model.User) (*model.Game, *model.Player, error)
	StartGame(ctx context.Context, code string, userID model.UserID) (*model.Game, error)
	SubmitQuestions(ctx context.Context, code string, userID model.UserID, original, impostor string) (*model.Round, error)
	SubmitAnswer(ctx context.Context, code string, userID model.UserID, answer string) error
	SubmitVote(ctx context.Context, code string, userID model.UserID, votedFor model.PlayerID) error
	AbandonGame(ctx context.Context, code string, userID model.UserID) (*model.Game, error)
	SetPlayerConnected(ctx context.Context, gameID model.GameID, userID model.UserID, connected bool) error
	GetGameView(ctx context.Context, code string, userID model.UserID) (*GameView, error)
	ListEvents(ctx context.Context, code string) ([]*model.GameEvent, error)
	Recover(ctx context.Context) (int, error)
	Shutdown()
}

var _ ControllerInterface = (*Controller)(nil)
