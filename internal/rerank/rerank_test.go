package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "ok", status: http.StatusOK, body: `{"status": "ok"}`},
		{name: "degraded", status: http.StatusOK, body: `{"status": "loading"}`, wantErr: ErrUnhealthy},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: ErrUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" || r.Method != http.MethodGet {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(srv.URL).Health(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHealthServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Health(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHealthTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL)
	client.HealthTimeout = 20 * time.Millisecond

	if err := client.Health(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/match-cv" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected authorization %q", got)
		}

		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.CVText != "cv" || len(req.JDTexts) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}

		_, _ = w.Write([]byte(`{"matches": [
			{"jdIndex": 1, "matchScore": 40, "scoreRatio": 0.4},
			{"jdIndex": 0, "matchScore": 88, "scoreRatio": 0.88}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	client.Token = "token"

	matches, err := client.Match(context.Background(), "cv", []string{"jd0", "jd1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) != 2 || matches[0].JDIndex != 0 || matches[0].MatchScore != 88 || matches[1].ScoreRatio != 0.4 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestMatchEmptyInput(t *testing.T) {
	matches, err := NewClient("http://127.0.0.1:1").Match(context.Background(), "cv", nil)
	if err != nil || matches != nil {
		t.Fatalf("expected no call for empty input, got %v, %v", matches, err)
	}
}

func TestParseMatchesRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "missing matches", body: `{}`},
		{name: "score out of range", body: `{"matches": [{"jdIndex": 0, "matchScore": 140, "scoreRatio": 0.5}]}`},
		{name: "ratio out of range", body: `{"matches": [{"jdIndex": 0, "matchScore": 40, "scoreRatio": 1.5}]}`},
		{name: "count mismatch", body: `{"matches": []}`},
		{name: "index out of range", body: `{"matches": [{"jdIndex": 3, "matchScore": 40, "scoreRatio": 0.4}]}`},
		{name: "fractional index", body: `{"matches": [{"jdIndex": 0.5, "matchScore": 40, "scoreRatio": 0.4}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseMatches([]byte(tt.body), 1); !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestParseMatchesRejectsDuplicateIndex(t *testing.T) {
	body := `{"matches": [
		{"jdIndex": 0, "matchScore": 40, "scoreRatio": 0.4},
		{"jdIndex": 0, "matchScore": 50, "scoreRatio": 0.5}
	]}`
	if _, err := parseMatches([]byte(body), 2); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
