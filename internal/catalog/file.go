package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/hh-matcher/internal/filtering"
	"github.com/spigell/hh-matcher/internal/jobs"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File serves postings from a YAML (or JSON) fixture file loaded once.
// Filters are applied in-process with the filtering steps.
type File struct {
	postings []*jobs.Posting
	logger   *zap.Logger
}

type fileDocument struct {
	Postings []*jobs.Posting `yaml:"postings"`
}

// LoadFile reads postings from path. The document is either a list of
// postings or a mapping with a "postings" key.
func LoadFile(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading postings file %q: %w", path, err)
	}

	postings, err := decodePostings(data)
	if err != nil {
		return nil, fmt.Errorf("decoding postings file %q: %w", path, err)
	}

	seen := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("postings file %q: posting without id", path)
		}
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("postings file %q: duplicate posting id %s", path, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	logger.Debug("loaded postings file", zap.String("path", path), zap.Int("count", len(postings)))

	return &File{postings: postings, logger: logger}, nil
}

// NewFile wraps an in-memory list of postings.
func NewFile(postings []*jobs.Posting, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{postings: postings, logger: logger}
}

func decodePostings(data []byte) ([]*jobs.Posting, error) {
	var list []*jobs.Posting
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Postings, nil
}

func (f *File) ListActive(ctx context.Context, filters jobs.Filters) ([]*jobs.Posting, error) {
	items := make([]*jobs.Posting, len(f.postings))
	copy(items, f.postings)

	pipeline := filtering.New(filtering.ForFilters(filters), f.logger)
	if ce := f.logger.Check(zap.DebugLevel, "filter pipeline"); ce != nil {
		ce.Write(zap.Any("steps", pipeline.Describe()))
	}

	result, err := pipeline.RunFilters(ctx, &jobs.Postings{Items: items})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (f *File) Get(_ context.Context, id string) (*jobs.Posting, error) {
	for _, p := range f.postings {
		if p.ID == id && filtering.Match(jobs.Filters{}, p) {
			return p, nil
		}
	}
	return nil, jobs.ErrNotFound
}

// All returns every posting in the file, retired ones included.
func (f *File) All() []*jobs.Posting {
	return f.postings
}
