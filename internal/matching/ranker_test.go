package matching

import (
	"math"
	"strings"
	"testing"

	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/rerank"
)

func candidateWith(id string, adjusted float64) *Candidate {
	return &Candidate{JobPostingID: id, AdjustedCosine: adjusted, penalty: Penalty{Factor: 1}}
}

func ids(cands []*Candidate) string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.JobPostingID)
	}
	return strings.Join(out, ",")
}

func TestThreshold(t *testing.T) {
	cands := []*Candidate{{JobPostingID: "at", MatchScorePercent: 50}, {JobPostingID: "above", MatchScorePercent: 51}}

	if got := ids(threshold(cands, 50)); got != "above" {
		t.Fatalf("expected only the 51%% candidate, got %q", got)
	}
}

func TestRankByCosineIsStable(t *testing.T) {
	cands := []*Candidate{
		candidateWith("a", 0.5),
		candidateWith("b", 0.9),
		candidateWith("c", 0.5),
		candidateWith("d", 0.7),
	}

	if got := ids(rankByCosine(cands, 3)); got != "b,d,a" {
		t.Fatalf("unexpected order %q", got)
	}
}

func TestUseCosine(t *testing.T) {
	c := candidateWith("a", 0.645)
	c.useCosine()

	if c.ScoreRatio != 0.645 || c.MatchScorePercent != 65 {
		t.Fatalf("unexpected cosine score: ratio=%v percent=%d", c.ScoreRatio, c.MatchScorePercent)
	}
	if c.Reranked {
		t.Fatalf("expected cosine-only candidate")
	}
}

func TestRankByRerankNeverIncreases(t *testing.T) {
	a := &Candidate{JobPostingID: "a", penalty: Penalty{Factor: 1}}
	b := &Candidate{JobPostingID: "b", penalty: Penalty{Factor: 1}}
	c := &Candidate{JobPostingID: "c", penalty: Penalty{Factor: 0.8}}

	// Ratio and score disagree for a.
	a.useRerank(rerank.Match{MatchScore: 60, ScoreRatio: 0.75})
	b.useRerank(rerank.Match{MatchScore: 90, ScoreRatio: 0.6})
	c.useRerank(rerank.Match{MatchScore: 90, ScoreRatio: 0.9})

	ranked := rankByRerank([]*Candidate{a, b, c}, 2)
	// The cut is made by ratio: b has the top score but the lowest ratio.
	for _, r := range ranked {
		if r.JobPostingID == "b" {
			t.Fatalf("expected b to be cut by ratio, got %q", ids(ranked))
		}
	}
	if got := ids(ranked); got != "c,a" {
		t.Fatalf("unexpected order %q", got)
	}
	if ranked[0].MatchScorePercent != 72 || math.Abs(ranked[0].ScoreRatio-0.72) > 1e-9 {
		t.Fatalf("expected penalized rerank values, got %+v", ranked[0])
	}
}

func TestSummaryReasons(t *testing.T) {
	c := newCandidate(&jobs.Posting{ID: "p", Title: "Go Dev", Description: "Write Go code.", Active: true})
	c.RawCosine = 0.5
	c.AdjustedCosine = 0.4
	c.useCosine()

	s := c.summary("matches filters: location Berlin")
	want := []string{
		"matches filters: location Berlin",
		"semantic similarity 0.50",
		"short job text (x0.8)",
		"ranked by semantic similarity only",
	}
	if strings.Join(s.Reasons, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected reasons %q", s.Reasons)
	}
	if s.CosineSimilarity != 0.5 || s.ScoreRatio != 0.4 || s.MatchScorePercent != 40 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
