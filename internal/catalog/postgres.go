package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spigell/hh-matcher/internal/jobs"
)

// querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres reads postings together with their employer and categories.
type Postgres struct {
	db querier
}

func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

const selectPostings = `
	SELECT p.id, COALESCE(p.title, ''), COALESCE(p.description, ''), COALESCE(p.location, ''),
	       p.salary_min, p.salary_max, COALESCE(p.experience, ''), p.active, p.updated_at,
	       COALESCE(e.id::text, ''), COALESCE(e.name, ''), COALESCE(e.industry, ''), COALESCE(e.about, ''),
	       COALESCE(array_agg(c.id::text ORDER BY c.name) FILTER (WHERE c.id IS NOT NULL), '{}'),
	       COALESCE(array_agg(c.name ORDER BY c.name) FILTER (WHERE c.id IS NOT NULL), '{}')
	FROM job_postings p
	LEFT JOIN employers e ON e.id = p.employer_id
	LEFT JOIN job_posting_categories pc ON pc.job_posting_id = p.id
	LEFT JOIN categories c ON c.id = pc.category_id`

const groupPostings = `
	GROUP BY p.id, e.id
	ORDER BY p.updated_at DESC, p.id`

// ListActive returns active postings matching every filter present in f.
func (r *Postgres) ListActive(ctx context.Context, f jobs.Filters) ([]*jobs.Posting, error) {
	query, args := buildListQuery(f)
	return r.query(ctx, query, args...)
}

// Get returns an active posting by id.
func (r *Postgres) Get(ctx context.Context, id string) (*jobs.Posting, error) {
	query := selectPostings + `
	WHERE p.active AND p.id::text = $1` + groupPostings

	postings, err := r.query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(postings) == 0 {
		return nil, jobs.ErrNotFound
	}
	return postings[0], nil
}

func buildListQuery(f jobs.Filters) (string, []any) {
	f = f.Normalize()

	where := []string{"p.active"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Location != "" {
		where = append(where, "strpos(lower(p.location), lower("+arg(f.Location)+")) > 0")
	}
	if f.MinSalary != nil {
		where = append(where, "p.salary_min >= "+arg(*f.MinSalary))
	}
	if f.MaxSalary != nil {
		where = append(where, "p.salary_max <= "+arg(*f.MaxSalary))
	}
	if f.Experience != "" {
		where = append(where, "strpos(lower(p.experience), lower("+arg(f.Experience)+")) > 0")
	}
	if f.CategoryID != "" {
		where = append(where, `EXISTS (
		SELECT 1 FROM job_posting_categories fc
		WHERE fc.job_posting_id = p.id AND fc.category_id::text = `+arg(f.CategoryID)+`)`)
	}

	return selectPostings + "\n\tWHERE " + strings.Join(where, "\n\t  AND ") + groupPostings, args
}

func (r *Postgres) query(ctx context.Context, query string, args ...any) ([]*jobs.Posting, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("postgres catalog is not initialized")
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list postings query: %w", err)
	}
	defer rows.Close()

	postings := make([]*jobs.Posting, 0)
	for rows.Next() {
		var (
			p             jobs.Posting
			updatedAt     *time.Time
			categoryIDs   []string
			categoryNames []string
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.Location,
			&p.SalaryMin, &p.SalaryMax, &p.Experience, &p.Active, &updatedAt,
			&p.Employer.ID, &p.Employer.Name, &p.Employer.Industry, &p.Employer.About,
			&categoryIDs, &categoryNames,
		); err != nil {
			return nil, fmt.Errorf("list postings scan: %w", err)
		}

		if updatedAt != nil {
			p.UpdatedAt = updatedAt.UTC()
		}
		for i := range categoryIDs {
			c := jobs.Category{ID: categoryIDs[i]}
			if i < len(categoryNames) {
				c.Name = categoryNames[i]
			}
			p.Categories = append(p.Categories, c)
		}

		postings = append(postings, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list postings rows: %w", err)
	}

	return postings, nil
}
