package jobs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Filters are the hard constraints applied before any scoring. Every present
// field is AND-combined.
type Filters struct {
	Location   string `mapstructure:"location" json:"location,omitempty" yaml:"location,omitempty"`
	MinSalary  *int   `mapstructure:"minSalary" json:"minSalary,omitempty" yaml:"minSalary,omitempty"`
	MaxSalary  *int   `mapstructure:"maxSalary" json:"maxSalary,omitempty" yaml:"maxSalary,omitempty"`
	Experience string `mapstructure:"experience" json:"experience,omitempty" yaml:"experience,omitempty"`
	CategoryID string `mapstructure:"categoryId" json:"categoryId,omitempty" yaml:"categoryId,omitempty"`
}

// ParseFilters decodes a loosely typed filter bag (decoded JSON, CLI
// key=value pairs) into Filters. Unknown keys are rejected.
func ParseFilters(raw map[string]any) (Filters, error) {
	var f Filters
	if len(raw) == 0 {
		return f, nil
	}

	cfg := &mapstructure.DecoderConfig{
		Result:           &f,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return f, fmt.Errorf("creating filters decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return f, fmt.Errorf("decoding filters: %w", err)
	}

	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return f, err
	}

	return f, nil
}

// ParseFilterPairs parses "key=value" strings as given on the command line.
func ParseFilterPairs(pairs []string) (Filters, error) {
	raw := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return Filters{}, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		raw[key] = strings.TrimSpace(value)
	}
	return ParseFilters(raw)
}

// Normalize trims text fields so that equivalent filter sets share a cache key.
func (f Filters) Normalize() Filters {
	f.Location = strings.TrimSpace(f.Location)
	f.Experience = strings.TrimSpace(f.Experience)
	f.CategoryID = strings.TrimSpace(f.CategoryID)
	return f
}

func (f Filters) Validate() error {
	if f.MinSalary != nil && *f.MinSalary < 0 {
		return errors.New("minSalary must not be negative")
	}
	if f.MaxSalary != nil && *f.MaxSalary < 0 {
		return errors.New("maxSalary must not be negative")
	}
	if f.MinSalary != nil && f.MaxSalary != nil && *f.MinSalary > *f.MaxSalary {
		return fmt.Errorf("minSalary %d is greater than maxSalary %d", *f.MinSalary, *f.MaxSalary)
	}
	return nil
}

func (f Filters) IsEmpty() bool {
	return f.Location == "" && f.MinSalary == nil && f.MaxSalary == nil && f.Experience == "" && f.CategoryID == ""
}

// Key returns a canonical representation of the normalized filter set.
// Text filters match case-insensitively, so they are lowercased here too.
func (f Filters) Key() string {
	f = f.Normalize()

	parts := []string{
		"location=" + strings.ToLower(f.Location),
		"minSalary=" + intKey(f.MinSalary),
		"maxSalary=" + intKey(f.MaxSalary),
		"experience=" + strings.ToLower(f.Experience),
		"categoryId=" + f.CategoryID,
	}
	return strings.Join(parts, ";")
}

func intKey(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Int returns a pointer to v. Handy for building filters and fixtures.
func Int(v int) *int {
	return &v
}
