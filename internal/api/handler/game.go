package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/impostorgame/internal/api/middleware"
	"github.com/mcoot/impostorgame/internal/api/request"
	"github.com/mcoot/impostorgame/internal/api/response"
	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/services/game"
)

// GameHandler handles game lifecycle and round endpoints
type GameHandler struct {
	gameController *game.Controller
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameController *game.Controller) *GameHandler {
	return &GameHandler{
		gameController: gameController,
	}
}

// decode reads a JSON body into v, writing an error response on failure
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return false
	}
	return true
}

// Create handles POST /api/v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.CreateGameRequest
	if !decode(w, r, &req) {
		return
	}

	g, admin, err := h.gameController.CreateGame(r.Context(), user, req.TotalRounds)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.JoinFromModel(g, admin))
}

// Get handles GET /api/v1/games/{code}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	view, err := h.gameController.GetGameView(r.Context(), mux.Vars(r)["code"], user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameStateFromView(view))
}

// Join handles POST /api/v1/games/{code}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	g, player, err := h.gameController.JoinGame(r.Context(), mux.Vars(r)["code"], user)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.JoinFromModel(g, player))
}

// Start handles POST /api/v1/games/{code}/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	g, err := h.gameController.StartGame(r.Context(), mux.Vars(r)["code"], user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(g))
}

// Abandon handles DELETE /api/v1/games/{code}
func (h *GameHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	g, err := h.gameController.AbandonGame(r.Context(), mux.Vars(r)["code"], user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(g))
}

// SubmitQuestions handles POST /api/v1/games/{code}/rounds
func (h *GameHandler) SubmitQuestions(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	code := mux.Vars(r)["code"]

	var req request.SubmitQuestionsRequest
	if !decode(w, r, &req) {
		return
	}

	round, err := h.gameController.SubmitQuestions(r.Context(), code, user.ID, req.OriginalQuestion, req.ImpostorQuestion)
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := h.gameController.GetGameView(r.Context(), code, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoundStartedFromModel(round, view.Game))
}

// SubmitAnswer handles POST /api/v1/games/{code}/answers.
// Answers outside the answer window are accepted and ignored.
func (h *GameHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.SubmitAnswerRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.gameController.SubmitAnswer(r.Context(), mux.Vars(r)["code"], user.ID, req.Answer); err != nil {
		WriteError(w, err)
		return
	}

	response.Accepted(w)
}

// SubmitVote handles POST /api/v1/games/{code}/votes.
// Votes outside the vote window are accepted and ignored.
func (h *GameHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.SubmitVoteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.VotedFor == "" {
		WriteError(w, NewInvalidRequestError("voted_for is required"))
		return
	}

	if err := h.gameController.SubmitVote(r.Context(), mux.Vars(r)["code"], user.ID, model.PlayerID(req.VotedFor)); err != nil {
		WriteError(w, err)
		return
	}

	response.Accepted(w)
}

// Log handles GET /api/v1/games/{code}/log
func (h *GameHandler) Log(w http.ResponseWriter, r *http.Request) {
	events, err := h.gameController.ListEvents(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.EventLogFromModel(events))
}
