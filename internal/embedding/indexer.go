package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spigell/hh-matcher/internal/jobs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Indexer computes and persists posting vectors.
type Indexer struct {
	provider     Provider
	store        Store
	modelVersion string
	concurrency  int
	logger       *zap.Logger
	now          func() time.Time
}

func NewIndexer(provider Provider, store Store, modelVersion string, concurrency int, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{
		provider:     provider,
		store:        store,
		modelVersion: modelVersion,
		concurrency:  concurrency,
		logger:       logger,
		now:          time.Now,
	}
}

// RecomputeEmbedding embeds assembledText and replaces the stored record for
// the posting.
func (i *Indexer) RecomputeEmbedding(ctx context.Context, jobPostingID, assembledText string) error {
	if strings.TrimSpace(jobPostingID) == "" {
		return errors.New("job posting id is required")
	}

	vec, err := i.provider.EmbedText(ctx, assembledText)
	if err != nil {
		return fmt.Errorf("embedding posting %s: %w", jobPostingID, err)
	}

	rec := Record{
		JobPostingID: jobPostingID,
		Vector:       vec,
		ModelVersion: i.modelVersion,
		UpdatedAt:    i.now().UTC(),
	}
	if err := i.store.PutEmbedding(ctx, rec); err != nil {
		return fmt.Errorf("storing embedding for posting %s: %w", jobPostingID, err)
	}

	i.logger.Debug("embedding recomputed",
		zap.String("job_posting_id", jobPostingID),
		zap.Int("dimensions", len(vec)),
	)
	return nil
}

// ReindexStats summarizes a Reindex run.
type ReindexStats struct {
	Total    int
	Fresh    int
	Embedded int
	Failed   int
}

// Reindex embeds every posting whose stored vector is missing or stale. With
// force set every posting is embedded again. Per-posting failures are logged
// and counted, not returned.
func (i *Indexer) Reindex(ctx context.Context, postings []*jobs.Posting, force bool) (ReindexStats, error) {
	stats := ReindexStats{Total: len(postings)}
	if len(postings) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(postings))
	for _, p := range postings {
		ids = append(ids, p.ID)
	}

	stored, err := i.store.GetEmbeddings(ctx, ids)
	if err != nil {
		return stats, fmt.Errorf("loading stored embeddings: %w", err)
	}

	var embedded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for _, p := range postings {
		if rec, ok := stored[p.ID]; ok && !force && rec.IsFresh(i.modelVersion, p.UpdatedAt) {
			stats.Fresh++
			continue
		}

		posting := p
		g.Go(func() error {
			text := jobs.Assemble(posting).Text
			if err := i.RecomputeEmbedding(gctx, posting.ID, text); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				i.logger.Warn("reindex posting failed", zap.String("job_posting_id", posting.ID), zap.Error(err))
				return nil
			}
			embedded.Add(1)
			return nil
		})
	}

	err = g.Wait()
	stats.Embedded = int(embedded.Load())
	stats.Failed = int(failed.Load())

	i.logger.Info("reindex finished",
		zap.Int("total", stats.Total),
		zap.Int("fresh", stats.Fresh),
		zap.Int("embedded", stats.Embedded),
		zap.Int("failed", stats.Failed),
	)

	return stats, err
}
