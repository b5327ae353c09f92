package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/hh-matcher/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	DefaultGeminiModel   = "text-embedding-004"
	DefaultGeminiRetries = 3
	retryBaseDelay       = 2 * time.Second
	maxQuotaRetryDelay   = 10 * time.Second
	geminiPreviewLength  = 120
)

var wait = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini produces embeddings with the Gemini API.
type Gemini struct {
	models     contentEmbedder
	model      string
	taskType   string
	dimensions int32
	maxRetries int
	logger     *zap.Logger
}

type GeminiOptions struct {
	Model      string
	TaskType   string
	Dimensions int32
	MaxRetries int
}

// NewGemini creates an embedding provider configured for the Gemini API backend.
func NewGemini(ctx context.Context, apiKey string, opts GeminiOptions, logger *zap.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, opts, logger), nil
}

func newGemini(models contentEmbedder, opts GeminiOptions, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultGeminiRetries
	}

	return &Gemini{
		models:     models,
		model:      model,
		taskType:   strings.TrimSpace(opts.TaskType),
		dimensions: opts.Dimensions,
		maxRetries: retries,
		logger:     logger,
	}
}

// Model returns the model name, used as the embedding model version.
func (g *Gemini) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// EmbedText embeds text, retrying temporary API errors up to maxRetries attempts.
func (g *Gemini) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	var config *genai.EmbedContentConfig
	if g.taskType != "" || g.dimensions > 0 {
		config = &genai.EmbedContentConfig{TaskType: g.taskType}
		if g.dimensions > 0 {
			dims := g.dimensions
			config.OutputDimensionality = &dims
		}
	}

	g.logger.Debug("gemini embed content request",
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.String("text_preview", utils.TruncateForLog(text, geminiPreviewLength)),
	)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.models.EmbedContent(ctx, g.model, genai.Text(text), config)
		if err == nil {
			return vectorFromResponse(resp)
		}

		lastErr = err
		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini embed content failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func vectorFromResponse(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrEmptyVector
	}
	values := resp.Embeddings[0].Values
	if len(values) == 0 {
		return nil, ErrEmptyVector
	}
	return values, nil
}

// retryDelay decides whether err is worth another attempt. Server errors are
// retried with a linear backoff. Quota errors are retried only when the
// advertised delay is short.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := time.Duration(attempt) * retryBaseDelay

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	case apiErr.Code == http.StatusTooManyRequests:
		if m := retryAfterPattern.FindStringSubmatch(strings.ToLower(apiErr.Message)); m != nil {
			seconds, parseErr := strconv.ParseFloat(m[1], 64)
			if parseErr == nil {
				advertised := time.Duration(seconds * float64(time.Second))
				if advertised > maxQuotaRetryDelay {
					return 0, false
				}
				return advertised, true
			}
		}
		return backoff, true
	default:
		return 0, false
	}
}
