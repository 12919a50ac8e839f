package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var (
		jsonOutput bool
		maxEvents  int
	)

	cmd := &cobra.Command{
		Use:   "events <code>",
		Short: "Stream live events from a game",
		Long: `Connect to the game's SSE endpoint and stream events in real-time.

Events include:
  - playerUpdate: Player list or scores changed
  - gameStarted: Lobby closed, waiting for questions
  - newRound: Your question for the round
  - votingPhase: Answers revealed, voting open
  - voteReceived: A player voted
  - roundResult: Round outcome and score changes
  - nextRoundReady: Waiting for the next question pair
  - gameOver: Final scores
  - gameAbandoned: The admin ended the game

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return streamEvents(ctx, cmd.OutOrStdout(), args[0], jsonOutput, maxEvents)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Disconnect after this many game events (0 streams until the game ends)")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

// errStopStream ends readEvents without an error
var errStopStream = errors.New("stop stream")

func streamEvents(ctx context.Context, out io.Writer, code string, jsonOutput bool, maxEvents int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := client.Stream(ctx, gamePath(code, "events"))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if !jsonOutput {
		_, _ = fmt.Fprintf(out, "Connected to game %s\n", strings.ToUpper(code))
	}

	seen := 0
	err = readEvents(resp.Body, func(evt SSEEvent) error {
		printEvent(out, evt, jsonOutput)
		if evt.Event == "connected" {
			return nil
		}
		seen++
		if maxEvents > 0 && seen >= maxEvents {
			return errStopStream
		}
		if evt.Event == "gameOver" || evt.Event == "gameAbandoned" {
			return errStopStream
		}
		return nil
	})

	switch {
	case err == nil, errors.Is(err, errStopStream):
	case ctx.Err() != nil:
		// Interrupted by the user
	default:
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintln(out, "Disconnected")
	}
	return nil
}

// readEvents parses an SSE stream and hands each complete event to fn.
// A non-nil error from fn stops parsing and is returned.
func readEvents(r io.Reader, fn func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				evt := SSEEvent{Time: time.Now(), Event: currentEvent, Data: strings.Join(dataLines, "\n")}
				if err := fn(evt); err != nil {
					return err
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	return scanner.Err()
}

func printEvent(out io.Writer, evt SSEEvent, jsonOutput bool) {
	if jsonOutput {
		jsonData, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(out, string(jsonData))
		return
	}

	displayData := strings.ReplaceAll(evt.Data, "\n", " ")
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", evt.Time.Format(time.DateTime), evt.Event, displayData)
}
