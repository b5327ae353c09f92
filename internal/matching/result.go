package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Code classifies the outcome of a match request.
type Code string

const (
	CodeOK                     Code = "OK"
	CodeMissingResumeEmbedding Code = "MISSING_RESUME_EMBEDDING"
	CodeEmptyFilterResult      Code = "EMPTY_FILTER_RESULT"
	CodeNoQualifyingMatches    Code = "NO_QUALIFYING_MATCHES"
	CodeJobsUnavailable        Code = "JOBS_UNAVAILABLE"
)

const (
	MessageOK                     = "matches found"
	MessageMissingResumeEmbedding = "resume has no usable text or its embedding could not be computed"
	MessageEmptyFilterResult      = "no job postings match the selected filters"
	MessageNoQualifyingMatches    = "no sufficiently strong matches were found"
	MessageNothingScored          = "none of the filtered job postings could be scored"
	MessageJobsUnavailable        = "job postings are temporarily unavailable"
)

// Result is the outcome of FindMatches. Failures are reported through Code;
// Candidates is never nil.
type Result struct {
	Code       Code               `json:"code" yaml:"code"`
	Message    string             `json:"message" yaml:"message"`
	Candidates []CandidateSummary `json:"candidates" yaml:"candidates"`
}

type CandidateSummary struct {
	JobPostingID      string   `json:"jobPostingId" yaml:"jobPostingId"`
	MatchScorePercent int      `json:"matchScorePercent" yaml:"matchScorePercent"`
	ScoreRatio        float64  `json:"scoreRatio" yaml:"scoreRatio"`
	CosineSimilarity  float64  `json:"cosineSimilarity" yaml:"cosineSimilarity"`
	Reasons           []string `json:"reasons" yaml:"reasons"`
}

// Score is the outcome of ScoreOne.
type Score struct {
	MatchScorePercent int     `json:"matchScorePercent" yaml:"matchScorePercent"`
	CosineSimilarity  float64 `json:"cosineSimilarity" yaml:"cosineSimilarity"`
}

func emptyResult(code Code, message string) *Result {
	return &Result{Code: code, Message: message, Candidates: []CandidateSummary{}}
}

// Resume is the candidate profile being matched. It is owned by the resume
// processing side; FindMatches only fills the embedding fields when they are
// missing or were produced by another model.
type Resume struct {
	OwnerID      string    `json:"ownerId" yaml:"ownerId"`
	RawText      string    `json:"rawText" yaml:"rawText"`
	Fingerprint  string    `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	ModelVersion string    `json:"modelVersion,omitempty" yaml:"modelVersion,omitempty"`
	EmbeddedAt   time.Time `json:"embeddedAt,omitempty" yaml:"embeddedAt,omitempty"`
}

func NewResume(ownerID, rawText string) *Resume {
	return &Resume{OwnerID: ownerID, RawText: rawText, Fingerprint: Fingerprint(rawText)}
}

// Fingerprint is the stable content hash of resume text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
