package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scoreCmd = &cobra.Command{
	Use:   "score <job-posting-id>",
	Short: "Score a single job posting against a resume",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runScore(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	addResumeFlags(scoreCmd)
	scoreCmd.Flags().StringP("output", "o", outputJSON, "output format: json or yaml")
}

func runScore(cmd *cobra.Command, id string) {
	ctx := context.Background()

	logger, _, rt := setup(ctx)
	defer rt.Close()

	resume, err := readResume(cmd)
	if err != nil {
		logger.Fatal("loading resume", zap.Error(err))
	}

	score := rt.matcher.ScoreOne(ctx, id, resume)
	if score == nil {
		logger.Fatal("job posting could not be scored",
			zap.String("job_posting_id", id),
			zap.String("hint", "the posting may be missing, retired, or its embedding unavailable"),
		)
	}

	format, _ := cmd.Flags().GetString("output")
	if err := render(cmd.OutOrStdout(), format, score); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}
