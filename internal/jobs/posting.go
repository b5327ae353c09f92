package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a posting does not exist or is retired.
var ErrNotFound = errors.New("job posting not found")

// Repository provides read-only access to job postings.
type Repository interface {
	// ListActive returns active postings satisfying every filter present in f.
	ListActive(ctx context.Context, f Filters) ([]*Posting, error)
	// Get returns a single active posting or ErrNotFound.
	Get(ctx context.Context, id string) (*Posting, error)
}

type Posting struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Location    string     `json:"location,omitempty" yaml:"location,omitempty"`
	SalaryMin   *int       `json:"salary_min,omitempty" yaml:"salary_min,omitempty"`
	SalaryMax   *int       `json:"salary_max,omitempty" yaml:"salary_max,omitempty"`
	Experience  string     `json:"experience,omitempty" yaml:"experience,omitempty"`
	Categories  []Category `json:"categories,omitempty" yaml:"categories,omitempty"`
	Employer    Employer   `json:"employer,omitempty" yaml:"employer,omitempty"`
	Active      bool       `json:"active" yaml:"active"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Employer struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Industry string `json:"industry,omitempty" yaml:"industry,omitempty"`
	About    string `json:"about,omitempty" yaml:"about,omitempty"`
}

// HasCategory reports whether the posting is tagged with the category id.
func (p *Posting) HasCategory(id string) bool {
	for _, c := range p.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Postings is an ordered list of postings. Order is the enumeration order
// used as the tiebreak when ranking.
type Postings struct {
	Items []*Posting
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *Posting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

func (p *Postings) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, posting := range p.Items {
		ids = append(ids, posting.ID)
	}
	return ids
}

// Keep retains postings for which keep returns true and returns the ids of
// the dropped ones. Order of the remaining postings is preserved.
func (p *Postings) Keep(keep func(*Posting) bool) []string {
	var dropped []string
	kept := p.Items[:0]
	for _, posting := range p.Items {
		if keep(posting) {
			kept = append(kept, posting)
			continue
		}
		dropped = append(dropped, posting.ID)
	}

	for i := len(kept); i < len(p.Items); i++ {
		p.Items[i] = nil
	}
	p.Items = kept

	return dropped
}
