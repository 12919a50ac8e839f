package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	out    io.Writer
	errOut io.Writer
}

// NewOutput creates a new Output formatter writing to out and errOut
func NewOutput(format string, out, errOut io.Writer) *Output {
	return &Output{format: format, out: out, errOut: errOut}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(o.errOut, string(data))
	} else {
		fmt.Fprintf(o.errOut, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.out, string(data))
	} else {
		fmt.Fprintln(o.out, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case SessionResult:
		o.printSession(v)
	case Game:
		o.printGame(v)
	case JoinResult:
		o.printJoin(v)
	case GameState:
		o.printGameState(v)
	case RoundStarted:
		o.printRoundStarted(v)
	case EventLog:
		o.printEventLog(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SessionResult combines the user and their token
type SessionResult struct {
	User         User      `json:"user"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Player response type
type Player struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Active      bool   `json:"active"`
	IsAdmin     bool   `json:"is_admin"`
}

// Game response type
type Game struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	AdminID      string     `json:"admin_id"`
	Phase        string     `json:"phase"`
	TotalRounds  int        `json:"total_rounds"`
	CurrentRound int        `json:"current_round"`
	PhaseEndsAt  *time.Time `json:"phase_ends_at"`
}

// JoinResult is returned by create and join
type JoinResult struct {
	Game   Game   `json:"game"`
	Player Player `json:"player"`
}

// Answer response type
type Answer struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Answer      string `json:"answer"`
}

// Round response type
type Round struct {
	Number   int      `json:"number"`
	Role     string   `json:"role"`
	Question string   `json:"question"`
	Answered bool     `json:"answered"`
	Voted    bool     `json:"voted"`
	Answers  []Answer `json:"answers,omitempty"`
}

// GameState response type
type GameState struct {
	Game    Game     `json:"game"`
	Players []Player `json:"players"`
	Self    *Player  `json:"self,omitempty"`
	Round   *Round   `json:"round,omitempty"`
}

// RoundStarted response type
type RoundStarted struct {
	Number int        `json:"number"`
	Phase  string     `json:"phase"`
	EndsAt *time.Time `json:"ends_at"`
}

// Event response type
type Event struct {
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventLog response type
type EventLog struct {
	Events []Event `json:"events"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	fmt.Fprintf(o.out, "User: %s (%s)\n", u.DisplayName, u.ID)
}

func (o *Output) printSession(s SessionResult) {
	o.printUser(s.User)
	fmt.Fprintf(o.out, "Token: %s\n", s.SessionToken)
	fmt.Fprintf(o.out, "Expires: %s\n", s.ExpiresAt.Local().Format(time.DateTime))
}

func (o *Output) printGame(g Game) {
	fmt.Fprintf(o.out, "Game: %s\n", g.Code)
	fmt.Fprintf(o.out, "Phase: %s\n", g.Phase)
	fmt.Fprintf(o.out, "Round: %d/%d\n", g.CurrentRound, g.TotalRounds)
	if g.PhaseEndsAt != nil {
		fmt.Fprintf(o.out, "Phase ends: %s\n", g.PhaseEndsAt.Local().Format(time.TimeOnly))
	}
}

func (o *Output) printJoin(j JoinResult) {
	o.printGame(j.Game)
	fmt.Fprintf(o.out, "Player: %s (%s)\n", j.Player.DisplayName, j.Player.ID)
}

func (o *Output) printGameState(s GameState) {
	o.printGame(s.Game)

	fmt.Fprintf(o.out, "Players (%d):\n", len(s.Players))
	for _, p := range s.Players {
		tags := ""
		if p.IsAdmin {
			tags += " [admin]"
		}
		if !p.Active {
			tags += " [away]"
		}
		if s.Self != nil && p.ID == s.Self.ID {
			tags += " [you]"
		}
		fmt.Fprintf(o.out, "  - %s (%s): %d%s\n", p.DisplayName, p.ID, p.Score, tags)
	}

	if s.Round == nil {
		return
	}
	fmt.Fprintf(o.out, "\nRound %d\n", s.Round.Number)
	fmt.Fprintf(o.out, "Your question: %s\n", s.Round.Question)
	fmt.Fprintf(o.out, "Answered: %t  Voted: %t\n", s.Round.Answered, s.Round.Voted)
	if len(s.Round.Answers) > 0 {
		fmt.Fprintln(o.out, "Answers:")
		for _, a := range s.Round.Answers {
			fmt.Fprintf(o.out, "  %s (%s): %s\n", a.DisplayName, a.PlayerID, a.Answer)
		}
	}
}

func (o *Output) printRoundStarted(r RoundStarted) {
	fmt.Fprintf(o.out, "Round %d started\n", r.Number)
	fmt.Fprintf(o.out, "Phase: %s\n", r.Phase)
	if r.EndsAt != nil {
		fmt.Fprintf(o.out, "Answers close: %s\n", r.EndsAt.Local().Format(time.TimeOnly))
	}
}

func (o *Output) printEventLog(l EventLog) {
	for _, e := range l.Events {
		fmt.Fprintf(o.out, "[%s] %s: %s\n", e.CreatedAt.Local().Format(time.DateTime), e.Name, string(e.Payload))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.out, "Status: %s\n", h.Status)
}
