// Package embedding requests, stores and refreshes job posting vectors.
package embedding

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyVector is returned when a provider answers without a vector.
var ErrEmptyVector = errors.New("embedding provider returned empty vector")

// Provider turns text into a fixed-size vector.
type Provider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Record is a persisted job posting vector.
type Record struct {
	JobPostingID string    `json:"job_posting_id"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is the persisted mapping from job posting id to its vector.
type Store interface {
	// GetEmbeddings returns records for the ids it knows. Unknown ids are
	// absent from the map, which is not an error.
	GetEmbeddings(ctx context.Context, ids []string) (map[string]Record, error)
	PutEmbedding(ctx context.Context, rec Record) error
}

// IsFresh reports whether the record may be used for a posting last changed
// at postingUpdatedAt. An empty modelVersion accepts any model.
func (r Record) IsFresh(modelVersion string, postingUpdatedAt time.Time) bool {
	if len(r.Vector) == 0 {
		return false
	}
	if modelVersion != "" && r.ModelVersion != modelVersion {
		return false
	}
	if !postingUpdatedAt.IsZero() && r.UpdatedAt.Before(postingUpdatedAt) {
		return false
	}
	return true
}

// WithTimeout bounds every EmbedText call of p by d.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: d}
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

func (p *timeoutProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.next.EmbedText(ctx, text)
}
