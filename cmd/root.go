package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spigell/hh-matcher/internal/cache"
	"github.com/spigell/hh-matcher/internal/embedding"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/rerank"
	"github.com/spigell/hh-matcher/internal/secrets"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "hh-matcher"
	envPrefix = "HH_MATCHER"
)

type Config struct {
	Catalog   *CatalogConfig   `mapstructure:"catalog"`
	Database  *SecretConfig    `mapstructure:"database"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Rerank    *RerankConfig    `mapstructure:"rerank"`
	Matching  *MatchingConfig  `mapstructure:"matching"`
	Cache     *CacheConfig     `mapstructure:"cache"`
	Server    *ServerConfig    `mapstructure:"server"`
}

// SecretConfig mirrors secrets.Source.
type SecretConfig struct {
	Value string `mapstructure:"value"`
	File  string `mapstructure:"file"`
	Env   string `mapstructure:"env"`
}

func (s *SecretConfig) source(name string) secrets.Source {
	if s == nil {
		return secrets.Source{Name: name}
	}
	return secrets.Source{Name: name, Value: s.Value, File: s.File, Env: s.Env}
}

type CatalogConfig struct {
	// Source is "file" or "postgres".
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
}

type EmbeddingConfig struct {
	// Provider is "http" or "gemini".
	Provider     string        `mapstructure:"provider"`
	ModelVersion string        `mapstructure:"model-version"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
	HTTP         *HTTPEmbedder `mapstructure:"http"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	// Store is "bolt", "postgres" or "qdrant".
	Store  string        `mapstructure:"store"`
	Bolt   *BoltConfig   `mapstructure:"bolt"`
	Qdrant *QdrantConfig `mapstructure:"qdrant"`
}

type HTTPEmbedder struct {
	URL   string        `mapstructure:"url"`
	Token *SecretConfig `mapstructure:"token"`
}

type GeminiConfig struct {
	APIKey     *SecretConfig `mapstructure:"api-key"`
	Model      string        `mapstructure:"model"`
	TaskType   string        `mapstructure:"task-type"`
	Dimensions int32         `mapstructure:"dimensions"`
	MaxRetries int           `mapstructure:"max-retries"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

type QdrantConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	Dimensions uint64        `mapstructure:"dimensions"`
	APIKey     *SecretConfig `mapstructure:"api-key"`
}

type RerankConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	HealthTimeout time.Duration `mapstructure:"health-timeout"`
	MatchTimeout  time.Duration `mapstructure:"match-timeout"`
	Token         *SecretConfig `mapstructure:"token"`
}

type MatchingConfig struct {
	TopK            int `mapstructure:"top-k"`
	TopN            int `mapstructure:"top-n"`
	MinMatchPercent int `mapstructure:"min-match-percent"`
}

type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend        string        `mapstructure:"backend"`
	TTL            time.Duration `mapstructure:"ttl"`
	SweepThreshold int           `mapstructure:"sweep-threshold"`
	SweepSchedule  string        `mapstructure:"sweep-schedule"`
	Redis          *SecretConfig `mapstructure:"redis"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-matcher ranks job postings against a resume",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.file", "postings.yaml")

	v.SetDefault("database.env", "DATABASE_URL")

	v.SetDefault("embedding.provider", "http")
	v.SetDefault("embedding.model-version", "")
	v.SetDefault("embedding.timeout", embedding.DefaultTimeout)
	v.SetDefault("embedding.concurrency", matching.DefaultEmbedConcurrency)
	v.SetDefault("embedding.http.url", "http://localhost:8000")
	v.SetDefault("embedding.http.token.env", "EMBEDDING_TOKEN")
	v.SetDefault("embedding.gemini.api-key.env", "GEMINI_API_KEY")
	v.SetDefault("embedding.gemini.model", embedding.DefaultGeminiModel)
	v.SetDefault("embedding.gemini.task-type", "SEMANTIC_SIMILARITY")
	v.SetDefault("embedding.gemini.dimensions", 0)
	v.SetDefault("embedding.gemini.max-retries", embedding.DefaultGeminiRetries)
	v.SetDefault("embedding.store", "bolt")
	v.SetDefault("embedding.bolt.path", "embeddings.db")
	v.SetDefault("embedding.qdrant.host", "localhost")
	v.SetDefault("embedding.qdrant.port", 6334)
	v.SetDefault("embedding.qdrant.collection", embedding.DefaultQdrantCollection)
	v.SetDefault("embedding.qdrant.dimensions", 0)
	v.SetDefault("embedding.qdrant.api-key.env", "QDRANT_API_KEY")

	v.SetDefault("rerank.enabled", false)
	v.SetDefault("rerank.url", "http://localhost:8001")
	v.SetDefault("rerank.health-timeout", rerank.DefaultHealthTimeout)
	v.SetDefault("rerank.match-timeout", rerank.DefaultMatchTimeout)
	v.SetDefault("rerank.token.env", "RERANK_TOKEN")

	v.SetDefault("matching.top-k", matching.DefaultTopK)
	v.SetDefault("matching.top-n", matching.DefaultTopN)
	v.SetDefault("matching.min-match-percent", matching.DefaultMinMatchPercent)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.sweep-threshold", cache.DefaultSweepThreshold)
	v.SetDefault("cache.sweep-schedule", "@every 10m")
	v.SetDefault("cache.redis.env", "REDIS_URL")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown-timeout", 10*time.Second)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults and environment are enough when no file is present.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
