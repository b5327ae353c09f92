package filtering

import (
	"context"
	"strconv"
	"strings"

	"github.com/spigell/hh-matcher/internal/jobs"
)

const notRequestedReason = "not requested"

// ForFilters returns the rule steps for a filter set. Steps for absent
// fields are kept in the list but disabled.
func ForFilters(f jobs.Filters) []Filter {
	f = f.Normalize()

	steps := []Filter{
		NewActive(),
		NewLocation(f.Location),
		NewSalary(f.MinSalary, f.MaxSalary),
		NewExperience(f.Experience),
		NewCategory(f.CategoryID),
	}

	if f.Location == "" {
		DisableByName(steps, locationName, notRequestedReason)
	}
	if f.MinSalary == nil && f.MaxSalary == nil {
		DisableByName(steps, salaryName, notRequestedReason)
	}
	if f.Experience == "" {
		DisableByName(steps, experienceName, notRequestedReason)
	}
	if f.CategoryID == "" {
		DisableByName(steps, categoryName, notRequestedReason)
	}

	return steps
}

// Match reports whether a single posting passes every rule in f.
func Match(f jobs.Filters, p *jobs.Posting) bool {
	for _, step := range ForFilters(f) {
		if !step.IsEnabled() {
			continue
		}
		if r, ok := step.(*rule); ok && !r.keep(p) {
			return false
		}
	}
	return true
}

const (
	activeName     = "active"
	locationName   = "location"
	salaryName     = "salary"
	experienceName = "experience"
	categoryName   = "category"
)

// rule is a predicate-backed filter step.
type rule struct {
	name     string
	keep     func(*jobs.Posting) bool
	details  map[string]string
	disabled bool
	reason   string
}

func (r *rule) Name() string { return r.name }

func (r *rule) Disable(reason string) {
	r.disabled = true
	r.reason = reason
}

func (r *rule) IsEnabled() bool { return !r.disabled }

func (r *rule) Validate() error { return nil }

func (r *rule) Apply(_ context.Context, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	dropped := p.Keep(r.keep)
	return p, Step{Initial: initial, Dropped: len(dropped), Left: p.Len()}, nil
}

func (r *rule) Status() Status {
	return Status{Name: r.name, Enabled: r.IsEnabled(), Reason: r.reason, Details: r.details}
}

// NewActive drops retired postings.
func NewActive() Filter {
	return &rule{
		name: activeName,
		keep: func(p *jobs.Posting) bool { return p.Active },
	}
}

// NewLocation keeps postings whose location contains the substring, ignoring case.
func NewLocation(location string) Filter {
	needle := strings.ToLower(strings.TrimSpace(location))
	return &rule{
		name:    locationName,
		keep:    func(p *jobs.Posting) bool { return strings.Contains(strings.ToLower(p.Location), needle) },
		details: map[string]string{"location": location},
	}
}

// NewExperience keeps postings whose experience requirement contains the substring, ignoring case.
func NewExperience(experience string) Filter {
	needle := strings.ToLower(strings.TrimSpace(experience))
	return &rule{
		name:    experienceName,
		keep:    func(p *jobs.Posting) bool { return strings.Contains(strings.ToLower(p.Experience), needle) },
		details: map[string]string{"experience": experience},
	}
}

// NewSalary keeps postings with salary_min >= minSalary and salary_max <= maxSalary.
// A posting without the filtered bound is dropped.
func NewSalary(minSalary, maxSalary *int) Filter {
	details := map[string]string{}
	if minSalary != nil {
		details["min_salary"] = strconv.Itoa(*minSalary)
	}
	if maxSalary != nil {
		details["max_salary"] = strconv.Itoa(*maxSalary)
	}

	return &rule{
		name: salaryName,
		keep: func(p *jobs.Posting) bool {
			if minSalary != nil && (p.SalaryMin == nil || *p.SalaryMin < *minSalary) {
				return false
			}
			if maxSalary != nil && (p.SalaryMax == nil || *p.SalaryMax > *maxSalary) {
				return false
			}
			return true
		},
		details: details,
	}
}

// NewCategory keeps postings tagged with the category id.
func NewCategory(categoryID string) Filter {
	return &rule{
		name:    categoryName,
		keep:    func(p *jobs.Posting) bool { return p.HasCategory(categoryID) },
		details: map[string]string{"category_id": categoryID},
	}
}
