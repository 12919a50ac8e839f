package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Game errors
	ErrGameNotFound      = errors.New("game not found")
	ErrGameCodeTaken     = errors.New("game code already in use")
	ErrInvalidRounds     = errors.New("total rounds must be positive")
	ErrWrongPhase        = errors.New("action not allowed in the current phase")
	ErrNotAdmin          = errors.New("player is not the game admin")
	ErrGameFinished      = errors.New("game has already finished")
	ErrInvalidQuestion   = errors.New("both questions must be non-empty")
	ErrInvalidAnswer     = errors.New("answer must be non-empty")
	ErrSchedulingFailure = errors.New("failed to schedule phase timer")

	// Player errors
	ErrPlayerNotFound      = errors.New("player not found")
	ErrAlreadyJoined       = errors.New("user has already joined this game")
	ErrNotInGame           = errors.New("user is not a player in this game")
	ErrInsufficientPlayers = errors.New("insufficient active players to start a round")

	// Round errors
	ErrRoundNotFound = errors.New("round not found")
	ErrRoundExists   = errors.New("round already exists")
)
