package request

// CreateSessionRequest is the request body for creating a guest session
type CreateSessionRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateGameRequest is the request body for creating a game
type CreateGameRequest struct {
	TotalRounds int `json:"total_rounds"`
}

// SubmitQuestionsRequest is the request body for starting a round
type SubmitQuestionsRequest struct {
	OriginalQuestion string `json:"original_question"`
	ImpostorQuestion string `json:"impostor_question"`
}

// SubmitAnswerRequest is the request body for answering the current round
type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

// SubmitVoteRequest is the request body for voting in the current round
type SubmitVoteRequest struct {
	VotedFor string `json:"voted_for"`
}
