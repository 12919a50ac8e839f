package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameJoinCmd())
	cmd.AddCommand(newGameStartCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameQuestionsCmd())
	cmd.AddCommand(newGameAnswerCmd())
	cmd.AddCommand(newGameVoteCmd())
	cmd.AddCommand(newGameAbandonCmd())
	cmd.AddCommand(newGameLogCmd())

	return cmd
}

// gamePath builds an API path for a game code
func gamePath(code string, parts ...string) string {
	path := "/api/v1/games/" + url.PathEscape(strings.ToUpper(code))
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

func newGameCreateCmd() *cobra.Command {
	var rounds int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a game and become its admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rounds <= 0 {
				return fmt.Errorf("--rounds must be positive")
			}

			req := map[string]int{"total_rounds": rounds}
			var result JoinResult

			if err := client.Post("/api/v1/games", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&rounds, "rounds", 3, "Number of rounds to play")

	return cmd
}

func newGameJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join a game in its lobby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result JoinResult

			if err := client.Post(gamePath(args[0], "join"), nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <code>",
		Short: "Close the lobby and start the game (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game

			if err := client.Post(gamePath(args[0], "start"), nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Get current game state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result GameState

			if err := client.Get(gamePath(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameQuestionsCmd() *cobra.Command {
	var original, impostor string

	cmd := &cobra.Command{
		Use:   "questions <code>",
		Short: "Submit the question pair and open the next round (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"original_question": original,
				"impostor_question": impostor,
			}
			var result RoundStarted

			if err := client.Post(gamePath(args[0], "rounds"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&original, "original", "", "Question shown to everyone else (required)")
	cmd.Flags().StringVar(&impostor, "impostor", "", "Question shown to the impostor (required)")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("impostor")

	return cmd
}

func newGameAnswerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <code> <answer>...",
		Short: "Answer the current round's question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"answer": strings.Join(args[1:], " ")}

			if err := client.Post(gamePath(args[0], "answers"), req, nil); err != nil {
				return err
			}

			output(cmd).PrintMessage("Answer submitted")
			return nil
		},
	}
}

func newGameVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <code> <player-id>",
		Short: "Vote for the player you think is the impostor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"voted_for": args[1]}

			if err := client.Post(gamePath(args[0], "votes"), req, nil); err != nil {
				return err
			}

			output(cmd).PrintMessage("Vote submitted")
			return nil
		},
	}
}

func newGameAbandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <code>",
		Short: "End the game early (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game

			if err := client.Delete(gamePath(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newGameLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <code>",
		Short: "Show the game's event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result EventLog

			if err := client.Get(gamePath(args[0], "log"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
