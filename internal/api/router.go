package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/impostorgame/internal/api/handler"
	"github.com/mcoot/impostorgame/internal/api/middleware"
	"github.com/mcoot/impostorgame/internal/realtime"
	"github.com/mcoot/impostorgame/internal/services/auth"
	"github.com/mcoot/impostorgame/internal/services/game"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	GameController *game.Controller
	Gateway        *realtime.Gateway
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.AuthService)
	gameHandler := handler.NewGameHandler(cfg.GameController)
	streamHandler := handler.NewStreamHandler(cfg.GameController, cfg.Gateway)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Session routes (creating a session needs no auth)
	api.HandleFunc("/sessions", sessionHandler.Create).Methods(http.MethodPost)

	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("/me", sessionHandler.Me).Methods(http.MethodGet)
	sessions.HandleFunc("/me", sessionHandler.Delete).Methods(http.MethodDelete)

	// Game routes (all require auth)
	games := api.PathPrefix("/games").Subrouter()
	games.Use(authMiddleware)
	games.HandleFunc("", gameHandler.Create).Methods(http.MethodPost)
	games.HandleFunc("/{code}", gameHandler.Get).Methods(http.MethodGet)
	games.HandleFunc("/{code}", gameHandler.Abandon).Methods(http.MethodDelete)
	games.HandleFunc("/{code}/join", gameHandler.Join).Methods(http.MethodPost)
	games.HandleFunc("/{code}/start", gameHandler.Start).Methods(http.MethodPost)
	games.HandleFunc("/{code}/rounds", gameHandler.SubmitQuestions).Methods(http.MethodPost)
	games.HandleFunc("/{code}/answers", gameHandler.SubmitAnswer).Methods(http.MethodPost)
	games.HandleFunc("/{code}/votes", gameHandler.SubmitVote).Methods(http.MethodPost)
	games.HandleFunc("/{code}/log", gameHandler.Log).Methods(http.MethodGet)

	// Realtime channels
	games.HandleFunc("/{code}/events", streamHandler.Events).Methods(http.MethodGet)
	games.HandleFunc("/{code}/ws", streamHandler.WebSocket).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
