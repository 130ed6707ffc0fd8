package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/victornm/quizmaster/internal/client"
	"github.com/victornm/quizmaster/internal/play"
)

func newPlayCmd() *cobra.Command {
	var (
		serverURL  string
		difficulty string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			p := play.New(play.Config{
				Backend:    client.New(client.Config{URL: serverURL}),
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
				Difficulty: difficulty,
			})
			return p.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "quizmaster server URL")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "question difficulty: easy, medium or hard")
	return cmd
}
