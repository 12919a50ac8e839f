package postgres

import (
	"time"

	"gorm.io/datatypes"

	"github.com/mcoot/impostorgame/internal/model"
)

type userRow struct {
	ID          string    `gorm:"primaryKey;size:64"`
	DisplayName string    `gorm:"size:64;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type gameRow struct {
	ID           string     `gorm:"primaryKey;size:64"`
	Code         string     `gorm:"size:8;not null;uniqueIndex"`
	AdminID      string     `gorm:"size:64;not null"`
	TotalRounds  int        `gorm:"not null"`
	CurrentRound int        `gorm:"not null"`
	Phase        string     `gorm:"size:32;not null;index"`
	PhaseEndsAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (gameRow) TableName() string { return "games" }

type playerRow struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Seq         int64     `gorm:"->"` // assigned by the database, gives join order
	GameID      string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_user"`
	UserID      string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_user"`
	DisplayName string    `gorm:"size:64;not null"`
	Score       int       `gorm:"not null"`
	Active      bool      `gorm:"not null"`
	JoinedAt    time.Time `gorm:"not null"`
}

func (playerRow) TableName() string { return "players" }

type roundRow struct {
	ID               string    `gorm:"primaryKey;size:64"`
	GameID           string    `gorm:"size:64;not null;uniqueIndex:idx_rounds_game_number"`
	Number           int       `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	OriginalQuestion string    `gorm:"type:text;not null"`
	ImpostorQuestion string    `gorm:"type:text;not null"`
	ImpostorID       string    `gorm:"size:64;not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (roundRow) TableName() string { return "rounds" }

type submissionRow struct {
	RoundID   string `gorm:"primaryKey;size:64"`
	PlayerID  string `gorm:"primaryKey;size:64"`
	Answer    *string
	VotedFor  *string   `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (submissionRow) TableName() string { return "submissions" }

type eventRow struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    string         `gorm:"size:64;index;not null"`
	Name      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (eventRow) TableName() string { return "game_events" }

// Conversions

func userToRow(u *model.User) userRow {
	return userRow{ID: string(u.ID), DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

func (r *userRow) toModel() *model.User {
	return &model.User{ID: model.UserID(r.ID), DisplayName: r.DisplayName, CreatedAt: r.CreatedAt}
}

func gameToRow(g *model.Game) gameRow {
	return gameRow{
		ID:           string(g.ID),
		Code:         string(g.Code),
		AdminID:      string(g.AdminID),
		TotalRounds:  g.TotalRounds,
		CurrentRound: g.CurrentRound,
		Phase:        string(g.Phase),
		PhaseEndsAt:  g.PhaseEndsAt,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func (r *gameRow) toModel() *model.Game {
	return &model.Game{
		ID:           model.GameID(r.ID),
		Code:         model.GameCode(r.Code),
		AdminID:      model.UserID(r.AdminID),
		TotalRounds:  r.TotalRounds,
		CurrentRound: r.CurrentRound,
		Phase:        model.Phase(r.Phase),
		PhaseEndsAt:  r.PhaseEndsAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func playerToRow(p *model.Player) playerRow {
	return playerRow{
		ID:          string(p.ID),
		GameID:      string(p.GameID),
		UserID:      string(p.UserID),
		DisplayName: p.DisplayName,
		Score:       p.Score,
		Active:      p.Active,
		JoinedAt:    p.JoinedAt,
	}
}

func (r *playerRow) toModel() *model.Player {
	return &model.Player{
		ID:          model.PlayerID(r.ID),
		GameID:      model.GameID(r.GameID),
		UserID:      model.UserID(r.UserID),
		DisplayName: r.DisplayName,
		Score:       r.Score,
		Active:      r.Active,
		JoinedAt:    r.JoinedAt,
	}
}

func roundToRow(r *model.Round) roundRow {
	return roundRow{
		ID:               string(r.ID),
		GameID:           string(r.GameID),
		Number:           r.Number,
		OriginalQuestion: r.OriginalQuestion,
		ImpostorQuestion: r.ImpostorQuestion,
		ImpostorID:       string(r.ImpostorID),
		CreatedAt:        r.CreatedAt,
	}
}

func (r *roundRow) toModel() *model.Round {
	return &model.Round{
		ID:               model.RoundID(r.ID),
		GameID:           model.GameID(r.GameID),
		Number:           r.Number,
		OriginalQuestion: r.OriginalQuestion,
		ImpostorQuestion: r.ImpostorQuestion,
		ImpostorID:       model.PlayerID(r.ImpostorID),
		CreatedAt:        r.CreatedAt,
	}
}

func (r *submissionRow) toModel() *model.Submission {
	sub := &model.Submission{
		RoundID:   model.RoundID(r.RoundID),
		PlayerID:  model.PlayerID(r.PlayerID),
		Answer:    r.Answer,
		UpdatedAt: r.UpdatedAt,
	}
	if r.VotedFor != nil {
		votedFor := model.PlayerID(*r.VotedFor)
		sub.VotedFor = &votedFor
	}
	return sub
}

func (r *eventRow) toModel() *model.GameEvent {
	return &model.GameEvent{
		GameID:    model.GameID(r.GameID),
		Name:      model.EventName(r.Name),
		Payload:   []byte(r.Payload),
		CreatedAt: r.CreatedAt,
	}
}
