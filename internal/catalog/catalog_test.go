package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spigell/hh-matcher/internal/jobs"
)

const fixture = `
postings:
  - id: p1
    title: Go Developer
    description: Build payment services in Go
    location: Berlin
    salary_min: 4000
    salary_max: 6000
    categories:
      - {id: backend, name: Backend}
    employer: {name: Acme}
    active: true
    updated_at: 2024-05-01T10:00:00Z
  - id: p2
    title: Retired role
    location: Berlin
    active: false
  - id: p3
    title: SRE
    location: Remote
    categories:
      - {id: ops, name: Operations}
    active: true
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFileListActive(t *testing.T) {
	repo, err := LoadFile(writeFixture(t, fixture), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	all, err := repo.ListActive(context.Background(), jobs.Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "p1" || all[1].ID != "p3" {
		t.Fatalf("unexpected postings: %+v", all)
	}

	berlin, err := repo.ListActive(context.Background(), jobs.Filters{Location: "berlin", CategoryID: "backend"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(berlin) != 1 || berlin[0].ID != "p1" {
		t.Fatalf("unexpected filtered postings: %+v", berlin)
	}
	if berlin[0].UpdatedAt.IsZero() || *berlin[0].SalaryMax != 6000 {
		t.Fatalf("expected decoded fields, got %+v", berlin[0])
	}

	if len(repo.All()) != 3 {
		t.Fatalf("filtering must not modify the loaded postings")
	}
}

func TestFileGet(t *testing.T) {
	repo, err := LoadFile(writeFixture(t, fixture), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if p, err := repo.Get(context.Background(), "p3"); err != nil || p.Title != "SRE" {
		t.Fatalf("unexpected result: %+v, %v", p, err)
	}

	for _, id := range []string{"p2", "missing"} {
		if _, err := repo.Get(context.Background(), id); !errors.Is(err, jobs.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %s, got %v", id, err)
		}
	}
}

func TestLoadFileAcceptsList(t *testing.T) {
	repo, err := LoadFile(writeFixture(t, `[{"id": "j1", "title": "JSON posting", "active": true}]`), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(repo.All()) != 1 || repo.All()[0].Title != "JSON posting" {
		t.Fatalf("unexpected postings: %+v", repo.All())
	}
}

func TestLoadFileRejectsDuplicates(t *testing.T) {
	_, err := LoadFile(writeFixture(t, "- {id: a}\n- {id: a}\n"), nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate posting id a") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(jobs.Filters{
		Location:   " Berlin ",
		MinSalary:  jobs.Int(1000),
		CategoryID: "backend",
	})

	for _, fragment := range []string{
		"WHERE p.active",
		"strpos(lower(p.location), lower($1)) > 0",
		"p.salary_min >= $2",
		"fc.category_id::text = $3",
		"GROUP BY p.id, e.id",
	} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected query to contain %q:\n%s", fragment, query)
		}
	}

	if strings.Contains(query, "salary_max <=") || strings.Contains(query, "p.experience), lower(") {
		t.Fatalf("absent filters must not produce predicates:\n%s", query)
	}

	if len(args) != 3 || args[0] != "Berlin" || args[1] != 1000 || args[2] != "backend" {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestPostgresNotInitialized(t *testing.T) {
	var repo *Postgres
	if _, err := repo.ListActive(context.Background(), jobs.Filters{}); err == nil {
		t.Fatalf("expected error from nil repository")
	}
}
