// Package matching ranks job postings against a resume.
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spigell/hh-matcher/internal/cache"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/rerank"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK             = 50
	DefaultTopN             = 10
	DefaultMinMatchPercent  = 50
	DefaultEmbedConcurrency = 4
)

type Config struct {
	// TopK is the shortlist size after cosine ranking.
	TopK int
	// TopN is the final list size after reranking or the cosine fallback.
	TopN int
	// MinMatchPercent drops candidates scoring at or below it.
	MinMatchPercent int
	// EmbedConcurrency bounds on-the-fly embedding calls per request.
	EmbedConcurrency int
	// ModelVersion identifies the embedding model. Stored vectors from
	// another model are treated as stale.
	ModelVersion string
}

func DefaultConfig() Config {
	return Config{
		TopK:             DefaultTopK,
		TopN:             DefaultTopN,
		MinMatchPercent:  DefaultMinMatchPercent,
		EmbedConcurrency: DefaultEmbedConcurrency,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.MinMatchPercent < 0 {
		c.MinMatchPercent = d.MinMatchPercent
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = d.EmbedConcurrency
	}
	return c
}

// Deps are the collaborators of a Matcher. Reranker and Cache are optional.
type Deps struct {
	Jobs       jobs.Repository
	Embeddings embedding.Store
	Provider   embedding.Provider
	Reranker   rerank.Reranker
	Cache      cache.Cache
}

// Matcher coordinates filtering, similarity ranking, reranking and caching.
type Matcher struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func New(deps Deps, cfg Config, log *zap.Logger) (*Matcher, error) {
	if deps.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if deps.Embeddings == nil {
		return nil, errors.New("embedding store is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Matcher{deps: deps, cfg: cfg.withDefaults(), logger: log, now: time.Now}, nil
}

// FindMatches returns the ranked postings for the resume. It never fails:
// problems are reported through Result.Code.
func (m *Matcher) FindMatches(ctx context.Context, resume *Resume, filters jobs.Filters) *Result {
	payload, result := m.findMatches(ctx, resume, filters)
	if result != nil {
		return result
	}

	var decoded Result
	if err := json.Unmarshal(payload, &decoded); err != nil {
		m.logger.Warn("cached match result is corrupted", zap.Error(err))
		return emptyResult(CodeNoQualifyingMatches, MessageNoQualifyingMatches)
	}
	if decoded.Candidates == nil {
		decoded.Candidates = []CandidateSummary{}
	}
	return &decoded
}

// FindMatchesJSON is FindMatches returning the encoded result. Cached results
// are returned byte for byte.
func (m *Matcher) FindMatchesJSON(ctx context.Context, resume *Resume, filters jobs.Filters) []byte {
	payload, result := m.findMatches(ctx, resume, filters)
	if payload != nil {
		return payload
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		m.logger.Error("encoding match result", zap.Error(err))
		return nil
	}
	return encoded
}

// findMatches returns either the cached payload or a freshly computed result.
func (m *Matcher) findMatches(ctx context.Context, resume *Resume, filters jobs.Filters) ([]byte, *Result) {
	if resume == nil {
		return nil, emptyResult(CodeMissingResumeEmbedding, MessageMissingResumeEmbedding)
	}
	if resume.Fingerprint == "" {
		resume.Fingerprint = Fingerprint(resume.RawText)
	}

	log := logger.WithMatchFields(m.logger, resume.OwnerID, resume.Fingerprint)
	filters = filters.Normalize()

	if err := m.ensureResumeEmbedding(ctx, resume); err != nil {
		log.Warn("resume embedding unavailable", zap.Error(err))
		return nil, emptyResult(CodeMissingResumeEmbedding, MessageMissingResumeEmbedding)
	}

	key := cache.Key(resume.Fingerprint, filters.Key(), m.cfg.ModelVersion)
	if m.deps.Cache != nil {
		if payload, ok := m.deps.Cache.Get(ctx, key); ok {
			log.Debug("match result served from cache")
			return payload, nil
		}
	}

	result, cacheable := m.compute(ctx, log, resume, filters)

	if cacheable && m.deps.Cache != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			log.Error("encoding match result", zap.Error(err))
			return nil, result
		}
		m.deps.Cache.Set(ctx, key, payload)
	}

	return nil, result
}

func (m *Matcher) compute(ctx context.Context, log *zap.Logger, resume *Resume, filters jobs.Filters) (*Result, bool) {
	started := m.now()

	postings, err := m.deps.Jobs.ListActive(ctx, filters)
	if err != nil {
		log.Error("listing job postings", zap.Error(err))
		return emptyResult(CodeJobsUnavailable, MessageJobsUnavailable), false
	}

	log.Debug("match stage", zap.String("name", "rule_filter"), zap.Int("left", len(postings)))

	if len(postings) == 0 {
		return emptyResult(CodeEmptyFilterResult, MessageEmptyFilterResult), true
	}

	candidates := make([]*Candidate, 0, len(postings))
	for _, p := range postings {
		candidates = append(candidates, newCandidate(p))
	}

	candidates = m.attachVectors(ctx, log, candidates)
	if len(candidates) == 0 {
		return emptyResult(CodeNoQualifyingMatches, MessageNothingScored), false
	}

	for _, c := range candidates {
		c.scoreCosine(resume.Embedding)
	}
	shortlist := rankByCosine(candidates, m.cfg.TopK)

	log.Debug("match stage", zap.String("name", "similarity"), zap.Int("initial", len(candidates)), zap.Int("left", len(shortlist)))

	final := m.rerank(ctx, log, resume, shortlist)
	qualified := threshold(final, m.cfg.MinMatchPercent)

	log.Info("match finished",
		zap.Int("filtered", len(postings)),
		zap.Int("scored", len(candidates)),
		zap.Int("ranked", len(final)),
		zap.Int("qualified", len(qualified)),
		zap.Duration("took", m.now().Sub(started)),
	)

	if len(qualified) == 0 {
		return emptyResult(CodeNoQualifyingMatches, MessageNoQualifyingMatches), true
	}

	filterReason := describeFilters(filters)
	result := &Result{Code: CodeOK, Message: MessageOK, Candidates: make([]CandidateSummary, 0, len(qualified))}
	for _, c := range qualified {
		result.Candidates = append(result.Candidates, c.summary(filterReason))
	}

	return result, true
}

// rerank runs the optional rerank stage. Any failure falls back to the
// cosine order, truncated to TopN.
func (m *Matcher) rerank(ctx context.Context, log *zap.Logger, resume *Resume, shortlist []*Candidate) []*Candidate {
	fallback := func(reason string, err error) []*Candidate {
		fields := []zap.Field{zap.String("reason", reason)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Debug("using cosine-only ranking", fields...)

		for _, c := range shortlist {
			c.useCosine()
		}
		return truncate(shortlist, m.cfg.TopN)
	}

	if m.deps.Reranker == nil {
		return fallback("reranker is not configured", nil)
	}

	if err := m.deps.Reranker.Health(ctx); err != nil {
		log.Warn("reranker health probe failed", zap.Error(err))
		return fallback("reranker is unhealthy", err)
	}

	texts := make([]string, 0, len(shortlist))
	for _, c := range shortlist {
		texts = append(texts, c.Text.Text)
	}

	matches, err := m.deps.Reranker.Match(ctx, resume.RawText, texts)
	if err == nil && len(matches) != len(shortlist) {
		err = rerank.ErrMalformedResponse
	}
	if err != nil {
		log.Warn("reranker match failed", zap.Error(err))
		return fallback("reranker call failed", err)
	}

	for i, c := range shortlist {
		c.useRerank(matches[i])
	}

	ranked := rankByRerank(shortlist, m.cfg.TopN)
	log.Debug("match stage", zap.String("name", "rerank"), zap.Int("initial", len(shortlist)), zap.Int("left", len(ranked)))
	return ranked
}

// ScoreOne computes the penalized cosine score of a single posting. It
// returns nil when the posting is unknown or no vector can be obtained.
func (m *Matcher) ScoreOne(ctx context.Context, jobPostingID string, resume *Resume) *Score {
	if resume == nil {
		return nil
	}
	if resume.Fingerprint == "" {
		resume.Fingerprint = Fingerprint(resume.RawText)
	}

	log := logger.WithMatchFields(m.logger, resume.OwnerID, resume.Fingerprint).
		With(zap.String(logger.FieldJobPosting, jobPostingID))

	if err := m.ensureResumeEmbedding(ctx, resume); err != nil {
		log.Warn("resume embedding unavailable", zap.Error(err))
		return nil
	}

	posting, err := m.deps.Jobs.Get(ctx, jobPostingID)
	if err != nil {
		if !errors.Is(err, jobs.ErrNotFound) {
			log.Warn("loading job posting", zap.Error(err))
		}
		return nil
	}

	scored := m.attachVectors(ctx, log, []*Candidate{newCandidate(posting)})
	if len(scored) == 0 {
		return nil
	}

	c := scored[0]
	c.scoreCosine(resume.Embedding)
	c.useCosine()

	return &Score{MatchScorePercent: c.MatchScorePercent, CosineSimilarity: c.RawCosine}
}

// ensureResumeEmbedding embeds the resume when it has no vector or the vector
// was produced by a different model.
func (m *Matcher) ensureResumeEmbedding(ctx context.Context, resume *Resume) error {
	stale := m.cfg.ModelVersion != "" && resume.ModelVersion != "" && resume.ModelVersion != m.cfg.ModelVersion
	if len(resume.Embedding) > 0 && !stale {
		return nil
	}

	if strings.TrimSpace(resume.RawText) == "" {
		return errors.New("resume text is empty")
	}

	vec, err := m.deps.Provider.EmbedText(ctx, resume.RawText)
	if err != nil {
		return err
	}

	resume.Embedding = vec
	resume.ModelVersion = m.cfg.ModelVersion
	resume.EmbeddedAt = m.now().UTC()
	return nil
}

// attachVectors fills candidate vectors from the store and embeds the
// missing or stale ones on the fly. Candidates that cannot be embedded are
// dropped. Order is preserved.
func (m *Matcher) attachVectors(ctx context.Context, log *zap.Logger, candidates []*Candidate) []*Candidate {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.JobPostingID)
	}

	stored, err := m.deps.Embeddings.GetEmbeddings(ctx, ids)
	if err != nil {
		log.Warn("loading stored embeddings, embedding all candidates on the fly", zap.Error(err))
		stored = nil
	}

	var missing []*Candidate
	for _, c := range candidates {
		if rec, ok := stored[c.JobPostingID]; ok && rec.IsFresh(m.cfg.ModelVersion, c.Posting.UpdatedAt) {
			c.Vector = rec.Vector
			continue
		}
		missing = append(missing, c)
	}

	if len(missing) > 0 {
		log.Debug("embedding candidates on the fly", zap.Int("count", len(missing)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.cfg.EmbedConcurrency)
		for _, c := range missing {
			g.Go(func() error {
				vec, err := m.deps.Provider.EmbedText(gctx, c.Text.Text)
				if err != nil {
					log.Warn("skipping candidate without embedding",
						zap.String(logger.FieldJobPosting, c.JobPostingID),
						zap.Error(err),
					)
					return nil
				}
				c.Vector = vec
				return nil
			})
		}
		_ = g.Wait()
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if len(c.Vector) > 0 {
			kept = append(kept, c)
		}
	}
	return kept
}

func describeFilters(f jobs.Filters) string {
	if f.IsEmpty() {
		return ""
	}

	var parts []string
	if f.Location != "" {
		parts = append(parts, "location "+f.Location)
	}
	if f.MinSalary != nil || f.MaxSalary != nil {
		parts = append(parts, "salary range")
	}
	if f.Experience != "" {
		parts = append(parts, "experience "+f.Experience)
	}
	if f.CategoryID != "" {
		parts = append(parts, "category "+f.CategoryID)
	}
	return "matches filters: " + strings.Join(parts, ", ")
}
