package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/impostorgame/internal/model"
	"github.com/mcoot/impostorgame/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidDisplayName  = "INVALID_DISPLAY_NAME"
	CodeGameNotFound        = "GAME_NOT_FOUND"
	CodePlayerNotFound      = "PLAYER_NOT_FOUND"
	CodeNotInGame           = "NOT_IN_GAME"
	CodeAlreadyJoined       = "ALREADY_JOINED"
	CodeNotAdmin            = "NOT_ADMIN"
	CodeWrongPhase          = "WRONG_PHASE"
	CodeGameFinished        = "GAME_FINISHED"
	CodeInvalidRounds       = "INVALID_ROUNDS"
	CodeInvalidQuestion     = "INVALID_QUESTION"
	CodeInvalidAnswer       = "INVALID_ANSWER"
	CodeInsufficientPlayers = "INSUFFICIENT_PLAYERS"
	CodeGameCodeTaken       = "GAME_CODE_TAKEN"
	CodeSchedulingFailure   = "SCHEDULING_FAILURE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	case errors.Is(err, model.ErrPlayerNotFound), errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrNotInGame):
		return &httpError{http.StatusForbidden, APIError{CodeNotInGame, "Not a player in this game"}}
	case errors.Is(err, model.ErrAlreadyJoined):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyJoined, "Already joined this game"}}
	case errors.Is(err, model.ErrNotAdmin):
		return &httpError{http.StatusForbidden, APIError{CodeNotAdmin, "Only the game admin can perform this action"}}
	case errors.Is(err, model.ErrWrongPhase):
		return &httpError{http.StatusConflict, APIError{CodeWrongPhase, "Action not allowed in the current phase"}}
	case errors.Is(err, model.ErrGameFinished):
		return &httpError{http.StatusGone, APIError{CodeGameFinished, "Game has already finished"}}
	case errors.Is(err, model.ErrInvalidRounds):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRounds, "Total rounds must be positive"}}
	case errors.Is(err, model.ErrInvalidQuestion):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidQuestion, "Both questions must be non-empty"}}
	case errors.Is(err, model.ErrInvalidAnswer):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidAnswer, "Answer must be non-empty"}}
	case errors.Is(err, model.ErrInsufficientPlayers):
		return &httpError{http.StatusConflict, APIError{CodeInsufficientPlayers, "Not enough active players"}}
	case errors.Is(err, model.ErrGameCodeTaken):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeGameCodeTaken, "Could not allocate a game code, try again"}}
	case errors.Is(err, model.ErrSchedulingFailure):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeSchedulingFailure, "Could not schedule the round timer"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, auth.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidDisplayName, "Display name must be 1-32 characters"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
