package jobs

import (
	"strings"
	"testing"
)

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters(map[string]any{
		"location":   " Berlin ",
		"minSalary":  "1000",
		"maxSalary":  float64(3000),
		"categoryId": 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Location != "Berlin" {
		t.Fatalf("expected trimmed location, got %q", f.Location)
	}
	if f.MinSalary == nil || *f.MinSalary != 1000 {
		t.Fatalf("unexpected min salary: %v", f.MinSalary)
	}
	if f.MaxSalary == nil || *f.MaxSalary != 3000 {
		t.Fatalf("unexpected max salary: %v", f.MaxSalary)
	}
	if f.CategoryID != "7" {
		t.Fatalf("unexpected category: %q", f.CategoryID)
	}
	if f.Experience != "" {
		t.Fatalf("expected empty experience, got %q", f.Experience)
	}
}

func TestParseFiltersErrors(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantErr string
	}{
		{name: "unknown key", raw: map[string]any{"city": "Berlin"}, wantErr: "decoding filters"},
		{name: "bad number", raw: map[string]any{"minSalary": "lots"}, wantErr: "decoding filters"},
		{name: "inverted range", raw: map[string]any{"minSalary": 10, "maxSalary": 5}, wantErr: "greater than"},
		{name: "negative", raw: map[string]any{"maxSalary": -1}, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilters(tt.raw)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseFilterPairs(t *testing.T) {
	f, err := ParseFilterPairs([]string{"experience=senior", "minSalary=200"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Experience != "senior" || f.MinSalary == nil || *f.MinSalary != 200 {
		t.Fatalf("unexpected filters: %+v", f)
	}

	if _, err := ParseFilterPairs([]string{"location"}); err == nil {
		t.Fatalf("expected error for pair without value separator")
	}
}

func TestFiltersKey(t *testing.T) {
	a := Filters{Location: "Berlin", MinSalary: Int(100)}
	b := Filters{Location: "  berlin ", MinSalary: Int(100)}
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}

	c := Filters{Location: "Berlin", MinSalary: Int(101)}
	if a.Key() == c.Key() {
		t.Fatalf("expected different keys for different salary bounds")
	}

	if !(Filters{}).IsEmpty() {
		t.Fatalf("expected zero filters to be empty")
	}
}

func TestPostingsKeep(t *testing.T) {
	p := &Postings{Items: []*Posting{{ID: "1"}, {ID: "2", Active: true}, {ID: "3"}, {ID: "4", Active: true}}}

	dropped := p.Keep(func(posting *Posting) bool { return posting.Active })

	if strings.Join(dropped, ",") != "1,3" {
		t.Fatalf("unexpected dropped ids: %v", dropped)
	}
	if strings.Join(p.IDs(), ",") != "2,4" {
		t.Fatalf("unexpected remaining ids: %v", p.IDs())
	}
	if p.FindByID("4") == nil || p.FindByID("1") != nil {
		t.Fatalf("unexpected lookup result")
	}
}
