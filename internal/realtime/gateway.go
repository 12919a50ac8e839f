package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/impostorgame/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Time between pings; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound WebSocket message size
	maxMessageSize = 4096

	// Time between SSE keepalive comments
	keepalivePeriod = 30 * time.Second
)

// Participant is the part of the game controller reachable from an open connection
type Participant interface {
	SetPlayerConnected(ctx context.Context, gameID model.GameID, userID model.UserID, connected bool) error
	SubmitAnswer(ctx context.Context, code string, userID model.UserID, answer string) error
	SubmitVote(ctx context.Context, code string, userID model.UserID, votedFor model.PlayerID) error
}

// Inbound WebSocket actions
const (
	ActionSubmitAnswer = "submitAnswer"
	ActionSubmitVote   = "submitVote"
)

// IncomingMessage is an action sent by a WebSocket client
type IncomingMessage struct {
	Action   string         `json:"action"`
	Answer   string         `json:"answer,omitempty"`
	VotedFor model.PlayerID `json:"votedFor,omitempty"`
}

// ErrorPayload describes a rejected action
type ErrorPayload struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// Gateway serves event streams and tracks player presence
type Gateway struct {
	hubs        *HubManager
	participant Participant
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewGateway creates a new Gateway
func NewGateway(hubs *HubManager, participant Participant, logger *slog.Logger) *Gateway {
	return &Gateway{
		hubs:        hubs,
		participant: participant,
		logger:      logger.With(slog.String("component", "gateway")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// connect registers a client and marks its player connected on their first stream
func (g *Gateway) connect(ctx context.Context, game *model.Game, userID model.UserID) (*Hub, *Client) {
	hub := g.hubs.GetOrCreateHub(game.ID)
	client := NewClient(userID)
	if hub.Register(client) == 1 {
		g.setPresence(ctx, game.ID, userID, true)
	}
	return hub, client
}

// disconnect unregisters a client and marks its player gone once their last stream closes
func (g *Gateway) disconnect(hub *Hub, client *Client, gameID model.GameID) {
	if hub.Unregister(client) == 0 {
		g.setPresence(context.Background(), gameID, client.userID, false)
	}
}

func (g *Gateway) setPresence(ctx context.Context, gameID model.GameID, userID model.UserID, connected bool) {
	err := g.participant.SetPlayerConnected(ctx, gameID, userID, connected)
	if err != nil && !errors.Is(err, model.ErrNotInGame) {
		g.logger.Warn("failed to update presence",
			slog.String("game_id", string(gameID)),
			slog.String("user_id", string(userID)),
			slog.Any("error", err))
	}
}

// ServeSSE streams a game's events to the client as server-sent events
func (g *Gateway) ServeSSE(w http.ResponseWriter, r *http.Request, game *model.Game, userID model.UserID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	hub, client := g.connect(r.Context(), game, userID)
	defer g.disconnect(hub, client, game.ID)

	_, _ = w.Write(formatSSEMessage(string(EventConnected), `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(keepalivePeriod)
	defer ticker.Stop()

	for {
		select {
		case envelope, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(formatSSEMessage(string(envelope.Event), string(envelope.Data))); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// ServeWS upgrades the request to a WebSocket that carries game events out and player actions in
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request, game *model.Game, userID model.UserID) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	hub, client := g.connect(r.Context(), game, userID)

	connected, _ := NewEnvelope(EventConnected, map[string]string{"status": "connected"})
	client.offer(connected)

	go g.writePump(conn, client)
	g.readPump(conn, client, game)
	g.disconnect(hub, client, game.ID)
}

func (g *Gateway) readPump(conn *websocket.Conn, client *Client, game *model.Game) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}

		var in IncomingMessage
		if err := json.Unmarshal(message, &in); err != nil {
			g.reject(client, "", "malformed message")
			continue
		}
		g.handleMessage(client, game, &in)
	}
}

func (g *Gateway) handleMessage(client *Client, game *model.Game, in *IncomingMessage) {
	ctx := context.Background()
	var err error
	switch in.Action {
	case ActionSubmitAnswer:
		err = g.participant.SubmitAnswer(ctx, string(game.Code), client.userID, in.Answer)
	case ActionSubmitVote:
		err = g.participant.SubmitVote(ctx, string(game.Code), client.userID, in.VotedFor)
	default:
		g.reject(client, in.Action, "unknown action")
		return
	}
	if err != nil {
		g.reject(client, in.Action, err.Error())
	}
}

// reject queues an error event for one client
func (g *Gateway) reject(client *Client, action, message string) {
	envelope, err := NewEnvelope(EventError, ErrorPayload{Action: action, Message: message})
	if err != nil {
		return
	}
	client.offer(envelope)
}

func (g *Gateway) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
