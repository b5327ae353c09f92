// Package rerank is a client for the cross-encoder reranking service.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const (
	DefaultHealthTimeout = 5 * time.Second
	DefaultMatchTimeout  = 60 * time.Second

	healthyStatus = "ok"
)

var (
	// ErrUnhealthy is returned by Health when the service answers but is not ready.
	ErrUnhealthy = errors.New("reranker is unhealthy")
	// ErrMalformedResponse is returned when a match response cannot be mapped back to the input.
	ErrMalformedResponse = errors.New("malformed rerank response")
)

const matchResponseSchema = `{
  "type": "object",
  "required": ["matches"],
  "properties": {
    "matches": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["jdIndex", "matchScore", "scoreRatio"],
        "properties": {
          "jdIndex": {"type": "integer", "minimum": 0},
          "matchScore": {"type": "number", "minimum": 0, "maximum": 100},
          "scoreRatio": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

var matchSchema = gojsonschema.NewStringLoader(matchResponseSchema)

// Reranker scores a resume against a shortlist of job texts.
type Reranker interface {
	Health(ctx context.Context) error
	Match(ctx context.Context, cvText string, jdTexts []string) ([]Match, error)
}

// Match is the raw score for the job text at JDIndex.
type Match struct {
	JDIndex    int     `json:"jdIndex"`
	MatchScore float64 `json:"matchScore"`
	ScoreRatio float64 `json:"scoreRatio"`
}

type matchRequest struct {
	CVText  string   `json:"cvText"`
	JDTexts []string `json:"jdTexts"`
}

type matchResponse struct {
	Matches []Match `json:"matches"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type Client struct {
	BaseURL       string
	Token         string
	HealthTimeout time.Duration
	MatchTimeout  time.Duration
	HTTPClient    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HealthTimeout: DefaultHealthTimeout,
		MatchTimeout:  DefaultMatchTimeout,
		HTTPClient:    &http.Client{},
	}
}

// Health probes GET /health. Any answer other than {"status": "ok"} is an error.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, orDefault(c.HealthTimeout, DefaultHealthTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("%w: decoding health response: %v", ErrUnhealthy, err)
	}
	if !strings.EqualFold(strings.TrimSpace(health.Status), healthyStatus) {
		return fmt.Errorf("%w: status %q", ErrUnhealthy, health.Status)
	}

	return nil
}

// Match posts the resume and job texts to /match-cv in one batch. The result
// has exactly one entry per job text, ordered by JDIndex.
func (c *Client) Match(ctx context.Context, cvText string, jdTexts []string) ([]Match, error) {
	if len(jdTexts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, orDefault(c.MatchTimeout, DefaultMatchTimeout))
	defer cancel()

	jsonData, err := json.Marshal(matchRequest{CVText: cvText, JDTexts: jdTexts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/match-cv", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	return parseMatches(body, len(jdTexts))
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func parseMatches(body []byte, expected int) ([]Match, error) {
	res, err := gojsonschema.Validate(matchSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: schema validation failed: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
	}

	var payload matchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(payload.Matches) != expected {
		return nil, fmt.Errorf("%w: got %d matches for %d texts", ErrMalformedResponse, len(payload.Matches), expected)
	}

	ordered := make([]Match, expected)
	seen := make([]bool, expected)
	for _, m := range payload.Matches {
		if m.JDIndex < 0 || m.JDIndex >= expected {
			return nil, fmt.Errorf("%w: jdIndex %d out of range", ErrMalformedResponse, m.JDIndex)
		}
		if seen[m.JDIndex] {
			return nil, fmt.Errorf("%w: duplicate jdIndex %d", ErrMalformedResponse, m.JDIndex)
		}
		seen[m.JDIndex] = true
		ordered[m.JDIndex] = m
	}

	return ordered, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
