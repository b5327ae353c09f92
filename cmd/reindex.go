package cmd

import (
	"context"

	"github.com/spigell/hh-matcher/internal/jobs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [job-posting-id...]",
	Short: "Compute and store embeddings for job postings",
	Long: "Without arguments every active posting with a missing or stale embedding is embedded. " +
		"With ids only those postings are recomputed.",
	Run: func(cmd *cobra.Command, args []string) {
		runReindex(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().Bool("force", false, "recompute embeddings that are still fresh")
}

func runReindex(cmd *cobra.Command, ids []string) {
	ctx := context.Background()

	logger, _, rt := setup(ctx)
	defer rt.Close()

	if len(ids) > 0 {
		failed := 0
		for _, id := range ids {
			posting, err := rt.jobs.Get(ctx, id)
			if err != nil {
				logger.Warn("loading job posting", zap.String("job_posting_id", id), zap.Error(err))
				failed++
				continue
			}
			if err := rt.indexer.RecomputeEmbedding(ctx, id, jobs.Assemble(posting).Text); err != nil {
				logger.Warn("recomputing embedding", zap.String("job_posting_id", id), zap.Error(err))
				failed++
			}
		}
		if failed > 0 {
			logger.Fatal("some embeddings were not recomputed", zap.Int("failed", failed), zap.Int("requested", len(ids)))
		}
		return
	}

	postings, err := rt.jobs.ListActive(ctx, jobs.Filters{})
	if err != nil {
		logger.Fatal("listing job postings", zap.Error(err))
	}

	force, _ := cmd.Flags().GetBool("force")
	stats, err := rt.indexer.Reindex(ctx, postings, force)
	if err != nil {
		logger.Fatal("reindexing", zap.Error(err))
	}
	if stats.Failed > 0 {
		logger.Warn("some postings were not embedded", zap.Int("failed", stats.Failed))
	}
}
