package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/impostorgame/internal/api/middleware"
	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/realtime"
	"github.com/mcoot/impostorgame/internal/services/game"
)

// StreamHandler attaches players to a game's realtime channel
type StreamHandler struct {
	gameController *game.Controller
	gateway        *realtime.Gateway
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(gameController *game.Controller, gateway *realtime.Gateway) *StreamHandler {
	return &StreamHandler{
		gameController: gameController,
		gateway:        gateway,
	}
}

// member resolves the game and checks the caller has a seat in it
func (h *StreamHandler) member(w http.ResponseWriter, r *http.Request) (*model.Game, *model.User, bool) {
	user := middleware.MustGetUser(r.Context())

	view, err := h.gameController.GetGameView(r.Context(), mux.Vars(r)["code"], user.ID)
	if err != nil {
		WriteError(w, err)
		return nil, nil, false
	}
	if view.Self == nil {
		WriteError(w, model.ErrNotInGame)
		return nil, nil, false
	}
	return view.Game, user, true
}

// Events handles GET /api/v1/games/{code}/events (server-sent events)
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	g, user, ok := h.member(w, r)
	if !ok {
		return
	}
	h.gateway.ServeSSE(w, r, g, user.ID)
}

// WebSocket handles GET /api/v1/games/{code}/ws
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	g, user, ok := h.member(w, r)
	if !ok {
		return
	}
	h.gateway.ServeWS(w, r, g, user.ID)
}
