package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/storage"
)

const uniqueViolation = "23505"

// Config holds Postgres connection settings
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DefaultConfig returns the default connection pool settings
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Storage is a Postgres implementation of the storage interface backed by gorm
type Storage struct {
	db *gorm.DB
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New connects to Postgres, applying migrations first when cfg.AutoMigrate is set
func New(cfg Config) (*Storage, error) {
	if cfg.AutoMigrate {
		if err := Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB wraps an existing gorm handle
func NewWithDB(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

// DB exposes the underlying handle
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Atomically runs fn inside a database transaction
func (s *Storage) Atomically(ctx context.Context, fn func(tx storage.Storage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Storage{db: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	row := userToRow(user)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
		}).
		Create(&row).Error
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrUserNotFound)
	}
	return row.toModel(), nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	row := gameToRow(game)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return model.ErrGameCodeTaken
		}
		return err
	}
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrGameNotFound)
	}
	return row.toModel(), nil
}

func (s *Storage) GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	var row gameRow
	if err := s.db.WithContext(ctx).First(&row, "code = ?", string(code)).Error; err != nil {
		return nil, notFound(err, model.ErrGameNotFound)
	}
	return row.toModel(), nil
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game) error {
	res := s.db.WithContext(ctx).
		Model(&gameRow{}).
		Where("id = ?", string(game.ID)).
		Updates(map[string]any{
			"admin_id":      string(game.AdminID),
			"total_rounds":  game.TotalRounds,
			"current_round": game.CurrentRound,
			"phase":         string(game.Phase),
			"phase_ends_at": game.PhaseEndsAt,
			"updated_at":    game.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrGameNotFound
	}
	return nil
}

func (s *Storage) ListActiveGames(ctx context.Context) ([]*model.Game, error) {
	var rows []gameRow
	err := s.db.WithContext(ctx).
		Where("phase NOT IN ?", []string{string(model.PhaseGameOver), string(model.PhaseAbandoned)}).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	games := make([]*model.Game, len(rows))
	for i := range rows {
		games[i] = rows[i].toModel()
	}
	return games, nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	row := playerToRow(player)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyJoined
		}
		return err
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var row playerRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

func (s *Storage) GetPlayerByUser(ctx context.Context, gameID model.GameID, userID model.UserID) (*model.Player, error) {
	var row playerRow
	err := s.db.WithContext(ctx).
		First(&row, "game_id = ? AND user_id = ?", string(gameID), string(userID)).Error
	if err != nil {
		return nil, notFound(err, model.ErrPlayerNotFound)
	}
	return row.toModel(), nil
}

func (s *Storage) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	var rows []playerRow
	err := s.db.WithContext(ctx).
		Where("game_id = ?", string(gameID)).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	players := make([]*model.Player, len(rows))
	for i := range rows {
		players[i] = rows[i].toModel()
	}
	return players, nil
}

func (s *Storage) SetPlayerActive(ctx context.Context, id model.PlayerID, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&playerRow{}).
		Where("id = ?", string(id)).
		UpdateColumn("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Storage) IncrementScores(ctx context.Context, gameID model.GameID, deltas map[model.PlayerID]int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, delta := range deltas {
			res := tx.Model(&playerRow{}).
				Where("id = ? AND game_id = ?", string(id), string(gameID)).
				UpdateColumn("score", gorm.Expr("score + ?", delta))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return model.ErrPlayerNotFound
			}
		}
		return nil
	})
}

// Round operations

func (s *Storage) CreateRound(ctx context.Context, round *model.Round) error {
	row := roundToRow(round)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return model.ErrRoundExists
		}
		return err
	}
	return nil
}

func (s *Storage) GetRound(ctx context.Context, gameID model.GameID, number int) (*model.Round, error) {
	var row roundRow
	err := s.db.WithContext(ctx).
		First(&row, "game_id = ? AND number = ?", string(gameID), number).Error
	if err != nil {
		return nil, notFound(err, model.ErrRoundNotFound)
	}
	return row.toModel(), nil
}

// Submission operations

func (s *Storage) UpsertAnswer(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, answer string, at time.Time) error {
	row := submissionRow{
		RoundID:   string(roundID),
		PlayerID:  string(playerID),
		Answer:    &answer,
		CreatedAt: at,
		UpdatedAt: at,
	}
	return s.upsertSubmission(ctx, &row, "answer")
}

func (s *Storage) UpsertVote(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, votedFor model.PlayerID, at time.Time) error {
	target := string(votedFor)
	row := submissionRow{
		RoundID:   string(roundID),
		PlayerID:  string(playerID),
		VotedFor:  &target,
		CreatedAt: at,
		UpdatedAt: at,
	}
	return s.upsertSubmission(ctx, &row, "voted_for")
}

// upsertSubmission inserts row, or on conflict overwrites only column and the update time
func (s *Storage) upsertSubmission(ctx context.Context, row *submissionRow, column string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_id"}, {Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
		}).
		Create(row).Error
}

func (s *Storage) ListSubmissions(ctx context.Context, roundID model.RoundID) ([]*model.Submission, error) {
	var rows []submissionRow
	err := s.db.WithContext(ctx).
		Where("round_id = ?", string(roundID)).
		Order("created_at, player_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	subs := make([]*model.Submission, len(rows))
	for i := range rows {
		subs[i] = rows[i].toModel()
	}
	return subs, nil
}

// Event log operations

func (s *Storage) AppendEvent(ctx context.Context, event *model.GameEvent) error {
	row := eventRow{
		GameID:    string(event.GameID),
		Name:      string(event.Name),
		Payload:   []byte(event.Payload),
		CreatedAt: event.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Storage) ListEvents(ctx context.Context, gameID model.GameID) ([]*model.GameEvent, error) {
	var rows []eventRow
	err := s.db.WithContext(ctx).
		Where("game_id = ?", string(gameID)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]*model.GameEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toModel()
	}
	return events, nil
}
