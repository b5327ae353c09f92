package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spigell/hh-matcher/internal/cache"
	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/db"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/rerank"
	"github.com/spigell/hh-matcher/internal/secrets"
	"go.uber.org/zap"
)

// runtime holds everything a command needs, built from Config.
type runtime struct {
	jobs     jobs.Repository
	store    embedding.Store
	provider embedding.Provider
	indexer  *embedding.Indexer
	matcher  *matching.Matcher
	// memory is set when the in-process cache is used, for scheduled sweeps.
	memory *cache.Memory

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func buildRuntime(ctx context.Context, config *Config, logger *zap.Logger) (*runtime, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Embedding == nil || config.Catalog == nil {
		return nil, errors.New("catalog and embedding sections are required")
	}

	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	var pool *pgxpool.Pool
	postgres := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		url, err := secrets.Load(config.Database.source("database url"))
		if err != nil {
			return nil, err
		}
		withVector := strings.EqualFold(config.Embedding.Store, "postgres")
		p, err := db.NewPostgresPool(ctx, url, withVector)
		if err != nil {
			return nil, err
		}
		pool = p
		rt.closers = append(rt.closers, p.Close)
		return pool, nil
	}

	repo, err := buildCatalog(config.Catalog, postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("building job catalog: %w", err)
	}
	rt.jobs = repo

	provider, modelVersion, err := buildProvider(ctx, config.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedding provider: %w", err)
	}
	rt.provider = provider

	store, err := buildStore(ctx, rt, config.Embedding, postgres)
	if err != nil {
		return nil, fmt.Errorf("building embedding store: %w", err)
	}
	rt.store = store

	rt.indexer = embedding.NewIndexer(provider, store, modelVersion, config.Embedding.Concurrency, logger.Named("indexer"))

	deps := matching.Deps{Jobs: repo, Embeddings: store, Provider: provider}

	if config.Rerank != nil && config.Rerank.Enabled {
		client, err := buildReranker(config.Rerank)
		if err != nil {
			return nil, fmt.Errorf("building reranker: %w", err)
		}
		deps.Reranker = client
	}

	if config.Cache != nil {
		c, err := buildCache(ctx, rt, config.Cache, logger.Named("cache"))
		if err != nil {
			return nil, fmt.Errorf("building result cache: %w", err)
		}
		if c != nil {
			deps.Cache = c
		}
	}

	matchCfg := matching.DefaultConfig()
	matchCfg.ModelVersion = modelVersion
	matchCfg.EmbedConcurrency = config.Embedding.Concurrency
	if config.Matching != nil {
		matchCfg.TopK = config.Matching.TopK
		matchCfg.TopN = config.Matching.TopN
		matchCfg.MinMatchPercent = config.Matching.MinMatchPercent
	}

	rt.matcher, err = matching.New(deps, matchCfg, logger.Named("matcher"))
	if err != nil {
		return nil, err
	}

	logger.Debug("runtime ready",
		zap.String("catalog", config.Catalog.Source),
		zap.String("embedding_provider", config.Embedding.Provider),
		zap.String("embedding_store", config.Embedding.Store),
		zap.String("model_version", modelVersion),
		zap.Bool("rerank", deps.Reranker != nil),
		zap.Bool("cache", deps.Cache != nil),
	)

	ok = true
	return rt, nil
}

func buildCatalog(cfg *CatalogConfig, postgres func() (*pgxpool.Pool, error), logger *zap.Logger) (jobs.Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", "file":
		return catalog.LoadFile(cfg.File, logger.Named("catalog"))
	case "postgres":
		pool, err := postgres()
		if err != nil {
			return nil, err
		}
		return catalog.NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unsupported catalog source: %s", cfg.Source)
	}
}

// buildProvider returns the embedding provider and the model version stored
// alongside its vectors.
func buildProvider(ctx context.Context, cfg *EmbeddingConfig, logger *zap.Logger) (embedding.Provider, string, error) {
	modelVersion := strings.TrimSpace(cfg.ModelVersion)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "http":
		if cfg.HTTP == nil || cfg.HTTP.URL == "" {
			return nil, "", errors.New("embedding.http.url is required")
		}
		token, err := secrets.Optional(cfg.HTTP.Token.source("embedding token"))
		if err != nil {
			return nil, "", err
		}
		client := embedding.NewHTTPClient(cfg.HTTP.URL, cfg.Timeout)
		client.Token = token
		return client, modelVersion, nil
	case "gemini":
		if cfg.Gemini == nil {
			return nil, "", errors.New("embedding.gemini section is required")
		}
		apiKey, err := secrets.Load(cfg.Gemini.APIKey.source("gemini api key"))
		if err != nil {
			return nil, "", fmt.Errorf("%w (set embedding.gemini.api-key.file or GEMINI_API_KEY)", err)
		}

		g, err := embedding.NewGemini(ctx, apiKey, embedding.GeminiOptions{
			Model:      cfg.Gemini.Model,
			TaskType:   cfg.Gemini.TaskType,
			Dimensions: cfg.Gemini.Dimensions,
			MaxRetries: cfg.Gemini.MaxRetries,
		}, logger.With(zap.String("provider", "gemini"), zap.String("model", cfg.Gemini.Model)))
		if err != nil {
			return nil, "", err
		}
		if modelVersion == "" {
			modelVersion = g.Model()
		}
		return embedding.WithTimeout(g, cfg.Timeout), modelVersion, nil
	default:
		return nil, "", fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func buildStore(ctx context.Context, rt *runtime, cfg *EmbeddingConfig, postgres func() (*pgxpool.Pool, error)) (embedding.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "bolt":
		path := "embeddings.db"
		if cfg.Bolt != nil && cfg.Bolt.Path != "" {
			path = cfg.Bolt.Path
		}
		store, err := embedding.OpenBolt(path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		return store, nil
	case "postgres":
		pool, err := postgres()
		if err != nil {
			return nil, err
		}
		return embedding.NewPostgresStore(pool), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("embedding.qdrant section is required")
		}
		apiKey, err := secrets.Optional(cfg.Qdrant.APIKey.source("qdrant api key"))
		if err != nil {
			return nil, err
		}
		client, err := embedding.NewQdrantClient(cfg.Qdrant.Host, cfg.Qdrant.Port, apiKey)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })

		store := embedding.NewQdrantStore(client, cfg.Qdrant.Collection)
		if cfg.Qdrant.Dimensions > 0 {
			if err := store.EnsureCollection(ctx, cfg.Qdrant.Dimensions); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported embedding store: %s", cfg.Store)
	}
}

func buildReranker(cfg *RerankConfig) (*rerank.Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rerank.url is required when rerank is enabled")
	}
	token, err := secrets.Optional(cfg.Token.source("rerank token"))
	if err != nil {
		return nil, err
	}

	client := rerank.NewClient(cfg.URL)
	client.Token = token
	if cfg.HealthTimeout > 0 {
		client.HealthTimeout = cfg.HealthTimeout
	}
	if cfg.MatchTimeout > 0 {
		client.MatchTimeout = cfg.MatchTimeout
	}
	return client, nil
}

// buildCache returns nil when caching is disabled.
func buildCache(ctx context.Context, rt *runtime, cfg *CacheConfig, logger *zap.Logger) (cache.Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		rt.memory = cache.NewMemory(cfg.TTL, cfg.SweepThreshold, logger)
		return rt.memory, nil
	case "redis":
		url, err := secrets.Load(cfg.Redis.source("redis url"))
		if err != nil {
			return nil, err
		}
		rdb, err := db.NewRedisClient(ctx, url)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		return cache.NewRedis(rdb, cfg.TTL, logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
