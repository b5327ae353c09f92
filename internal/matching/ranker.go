package matching

import (
	"fmt"
	"math"
	"sort"

	"github.com/spigell/hh-matcher/internal/jobs"
	"github.com/spigell/hh-matcher/internal/rerank"
)

// Candidate is the per-request scoring state of one posting.
type Candidate struct {
	JobPostingID     string
	Posting          *jobs.Posting
	Text             jobs.AssembledText
	PassedRuleFilter bool
	Vector           []float32

	RawCosine      float64
	AdjustedCosine float64

	Reranked            bool
	RawRerankScore      float64
	AdjustedRerankScore float64
	RawRerankRatio      float64
	AdjustedRerankRatio float64

	ScoreRatio        float64
	MatchScorePercent int
	Reasons           []string

	penalty Penalty
}

func newCandidate(p *jobs.Posting) *Candidate {
	text := jobs.Assemble(p)
	return &Candidate{
		JobPostingID:     p.ID,
		Posting:          p,
		Text:             text,
		PassedRuleFilter: true,
		penalty:          PenaltyFor(text),
	}
}

// scoreCosine computes raw and penalized similarity against the resume vector.
func (c *Candidate) scoreCosine(resume []float32) {
	c.RawCosine = CosineSimilarity(resume, c.Vector)
	c.AdjustedCosine = c.penalty.Apply(c.RawCosine)
}

// useCosine makes the penalized cosine the final score.
func (c *Candidate) useCosine() {
	c.Reranked = false
	c.ScoreRatio = c.AdjustedCosine
	c.MatchScorePercent = percent(c.AdjustedCosine * 100)
}

// useRerank makes the penalized rerank output the final score.
func (c *Candidate) useRerank(m rerank.Match) {
	c.Reranked = true
	c.RawRerankScore = m.MatchScore
	c.RawRerankRatio = m.ScoreRatio
	c.AdjustedRerankScore = c.penalty.Apply(m.MatchScore)
	c.AdjustedRerankRatio = c.penalty.Apply(m.ScoreRatio)
	c.ScoreRatio = c.AdjustedRerankRatio
	c.MatchScorePercent = percent(c.AdjustedRerankScore)
}

func (c *Candidate) summary(filterReason string) CandidateSummary {
	reasons := make([]string, 0, 4)
	if filterReason != "" {
		reasons = append(reasons, filterReason)
	}
	reasons = append(reasons, fmt.Sprintf("semantic similarity %.2f", c.RawCosine))
	if c.penalty.Reason != "" {
		reasons = append(reasons, c.penalty.Reason)
	}
	if c.Reranked {
		reasons = append(reasons, fmt.Sprintf("reranker score %d%%", c.MatchScorePercent))
	} else {
		reasons = append(reasons, "ranked by semantic similarity only")
	}

	return CandidateSummary{
		JobPostingID:      c.JobPostingID,
		MatchScorePercent: c.MatchScorePercent,
		ScoreRatio:        c.ScoreRatio,
		CosineSimilarity:  c.RawCosine,
		Reasons:           reasons,
	}
}

func percent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(v))
}

// rankByCosine stable-sorts by adjusted similarity, descending, and keeps
// the first k. Equal scores keep enumeration order.
func rankByCosine(candidates []*Candidate, k int) []*Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AdjustedCosine > candidates[j].AdjustedCosine
	})
	return truncate(candidates, k)
}

// rankByRerank stable-sorts by adjusted rerank ratio, descending, keeps the
// first n, then orders those by percent so the published list never
// increases. With a consistent reranker the second pass is a no-op.
func rankByRerank(candidates []*Candidate, n int) []*Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AdjustedRerankRatio > candidates[j].AdjustedRerankRatio
	})
	top := truncate(candidates, n)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].MatchScorePercent > top[j].MatchScorePercent
	})
	return top
}

func truncate(candidates []*Candidate, n int) []*Candidate {
	if n > 0 && len(candidates) > n {
		return candidates[:n]
	}
	return candidates
}

// threshold drops candidates at or below minPercent.
func threshold(candidates []*Candidate, minPercent int) []*Candidate {
	kept := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.MatchScorePercent > minPercent {
			kept = append(kept, c)
		}
	}
	return kept
}
