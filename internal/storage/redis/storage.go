package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config

	// pipe is set on the view handed to Atomically callbacks; writes queue
	// on it and run together in a single MULTI/EXEC
	pipe redis.Pipeliner
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Atomically queues every write made by fn into one MULTI/EXEC transaction.
// Reads inside fn go straight to Redis and do not see the queued writes.
func (s *Storage) Atomically(ctx context.Context, fn func(tx storage.Storage) error) error {
	if s.pipe != nil {
		return fn(s)
	}

	pipe := s.client.TxPipeline()
	tx := &Storage{client: s.client, cfg: s.cfg, pipe: pipe}
	if err := fn(tx); err != nil {
		pipe.Discard()
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

// write runs queue against the open transaction, or a new one if none is open
func (s *Storage) write(ctx context.Context, queue func(p redis.Pipeliner)) error {
	if s.pipe != nil {
		queue(s.pipe)
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		queue(p)
		return nil
	})
	return err
}

func (s *Storage) getJSON(ctx context.Context, key string, v any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.write(ctx, func(p redis.Pipeliner) {
		p.Set(ctx, userKey(user.ID), data, s.cfg.UserTTL)
	})
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	var user model.User
	if err := s.getJSON(ctx, userKey(id), &user, model.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	taken, err := s.client.Exists(ctx, gameCodeIndexKey(game.Code)).Result()
	if err != nil {
		return err
	}
	if taken > 0 {
		return model.ErrGameCodeTaken
	}

	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return s.write(ctx, func(p redis.Pipeliner) {
		p.Set(ctx, gameKey(game.ID), data, s.cfg.GameTTL)
		p.Set(ctx, gameCodeIndexKey(game.Code), string(game.ID), s.cfg.GameTTL)
		p.SAdd(ctx, activeGamesKey(), string(game.ID))
	})
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var game model.Game
	if err := s.getJSON(ctx, gameKey(id), &game, model.ErrGameNotFound); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	id, err := s.client.Get(ctx, gameCodeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}
	return s.GetGame(ctx, model.GameID(id))
}

func (s *Storage) UpdateGame(ctx context.Context, game *model.Game) error {
	exists, err := s.client.Exists(ctx, gameKey(game.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrGameNotFound
	}

	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	return s.write(ctx, func(p redis.Pipeliner) {
		p.Set(ctx, gameKey(game.ID), data, s.cfg.GameTTL)
		if game.Phase.IsTerminal() {
			p.SRem(ctx, activeGamesKey(), string(game.ID))
		}
	})
}

func (s *Storage) ListActiveGames(ctx context.Context) ([]*model.Game, error) {
	ids, err := s.client.SMembers(ctx, activeGamesKey()).Result()
	if err != nil {
		return nil, err
	}

	var games []*model.Game
	for _, id := range ids {
		game, err := s.GetGame(ctx, model.GameID(id))
		if errors.Is(err, model.ErrGameNotFound) {
			// Expired by TTL
			s.client.SRem(ctx, activeGamesKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if game.Phase.IsTerminal() {
			continue
		}
		games = append(games, game)
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
	exists, err := s.client.Exists(ctx, playerByUserIndexKey(player.GameID, player.UserID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return model.ErrAlreadyJoined
	}

	data, err := json.Marshal(player)
	if err != nil {
		return err
	}
	ttl := s.cfg.GameTTL
	return s.write(ctx, func(p redis.Pipeliner) {
		p.Set(ctx, playerKey(player.ID), data, ttl)
		p.Set(ctx, playerByUserIndexKey(player.GameID, player.UserID), string(player.ID), ttl)
		p.RPush(ctx, gamePlayersKey(player.GameID), string(player.ID))
		p.HSet(ctx, scoresKey(player.GameID), string(player.ID), player.Score)
		if ttl > 0 {
			p.Expire(ctx, gamePlayersKey(player.GameID), ttl)
			p.Expire(ctx, scoresKey(player.GameID), ttl)
		}
	})
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if err := s.getJSON(ctx, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}

	score, err := s.client.HGet(ctx, scoresKey(player.GameID), string(id)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	player.Score = score
	return &player, nil
}

func (s *Storage) GetPlayerByUser(ctx context.Context, gameID model.GameID, userID model.UserID) (*model.Player, error) {
	id, err := s.client.Get(ctx, playerByUserIndexKey(gameID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetPlayer(ctx, model.PlayerID(id))
}

func (s *Storage) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	ids, err := s.client.LRange(ctx, gamePlayersKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(model.PlayerID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	scores, err := s.client.HGetAll(ctx, scoresKey(gameID)).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var player model.Player
		if err := json.Unmarshal([]byte(raw), &player); err != nil {
			return nil, err
		}
		if score, ok := scores[ids[i]]; ok {
			player.Score, _ = strconv.Atoi(score)
		}
		players = append(players, &player)
	}
	return players, nil
}

func (s *Storage) SetPlayerActive(ctx context.Context, id model.PlayerID, active bool) error {
	var player model.Player
	if err := s.getJSON(ctx, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return err
	}
	player.Active = active

	data, err := json.Marshal(player)
	if err != nil {
		return err
	}
	return s.write(ctx, func(p redis.Pipeliner) {
		p.Set(ctx, playerKey(id), data, s.cfg.GameTTL)
	})
}

func (s *Storage) IncrementScores(ctx context.Context, gameID model.GameID, deltas map[model.PlayerID]int) error {
	for id := range deltas {
		exists, err := s.client.HExists(ctx, scoresKey(gameID), string(id)).Result()
		if err != nil {
			return err
		}
		if !exists {
			return model.ErrPlayerNotFound
		}
	}
	return s.write(ctx, func(p redis.Pipeliner) {
		for id, delta := range deltas {
			p.HIncrBy(ctx, scoresKey(gameID), string(id), int64(delta))
		}
	})
}

// Round operations

func (s *Storage) CreateRound(ctx context.Context, round *model.Round) error {
	key := roundKey(round.GameID, round.Number)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return model.ErrRoundExists
	}

	data, err := json.Marshal(round)
	if err != nil {
		return err
	}
	return s.write(ctx, func(p redis.Pipeliner) {
		p.Set(ctx, key, data, s.cfg.GameTTL)
	})
}

func (s *Storage) GetRound(ctx context.Context, gameID model.GameID, number int) (*model.Round, error) {
	var round model.Round
	if err := s.getJSON(ctx, roundKey(gameID, number), &round, model.ErrRoundNotFound); err != nil {
		return nil, err
	}
	return &round, nil
}

// Submission operations

func (s *Storage) UpsertAnswer(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, answer string, at time.Time) error {
	return s.upsertSubmission(ctx, roundID, playerID, answerField(playerID), answer, at)
}

func (s *Storage) UpsertVote(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, votedFor model.PlayerID, at time.Time) error {
	return s.upsertSubmission(ctx, roundID, playerID, voteField(playerID), string(votedFor), at)
}

// upsertSubmission sets one field of a submission; HSET makes the write last-wins
func (s *Storage) upsertSubmission(ctx context.Context, roundID model.RoundID, playerID model.PlayerID, field, value string, at time.Time) error {
	key := submissionsKey(roundID)
	return s.write(ctx, func(p redis.Pipeliner) {
		p.HSet(ctx, key, field, value, updatedAtField(playerID), at.UTC().Format(time.RFC3339Nano))
		if s.cfg.GameTTL > 0 {
			p.Expire(ctx, key, s.cfg.GameTTL)
		}
	})
}

// ListSubmissions returns the round's submissions ordered by player ID
func (s *Storage) ListSubmissions(ctx context.Context, roundID model.RoundID) ([]*model.Submission, error) {
	fields, err := s.client.HGetAll(ctx, submissionsKey(roundID)).Result()
	if err != nil {
		return nil, err
	}

	byPlayer := make(map[model.PlayerID]*model.Submission)
	get := func(id model.PlayerID) *model.Submission {
		sub, ok := byPlayer[id]
		if !ok {
			sub = &model.Submission{RoundID: roundID, PlayerID: id}
			byPlayer[id] = sub
		}
		return sub
	}

	for field, value := range fields {
		idx := strings.LastIndex(field, ":")
		if idx < 0 {
			continue
		}
		id := model.PlayerID(field[:idx])
		switch field[idx+1:] {
		case "answer":
			answer := value
			get(id).Answer = &answer
		case "vote":
			votedFor := model.PlayerID(value)
			get(id).VotedFor = &votedFor
		case "updated_at":
			at, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("parse submission time: %w", err)
			}
			get(id).UpdatedAt = at
		}
	}

	subs := make([]*model.Submission, 0, len(byPlayer))
	for _, sub := range byPlayer {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].PlayerID < subs[j].PlayerID })
	return subs, nil
}

// Event log operations

func (s *Storage) AppendEvent(ctx context.Context, event *model.GameEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := eventsKey(event.GameID)
	return s.write(ctx, func(p redis.Pipeliner) {
		p.RPush(ctx, key, data)
		if s.cfg.GameTTL > 0 {
			p.Expire(ctx, key, s.cfg.GameTTL)
		}
	})
}

func (s *Storage) ListEvents(ctx context.Context, gameID model.GameID) ([]*model.GameEvent, error) {
	values, err := s.client.LRange(ctx, eventsKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]*model.GameEvent, 0, len(values))
	for _, v := range values {
		var event model.GameEvent
		if err := json.Unmarshal([]byte(v), &event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, nil
}
