package embedding

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

func TestHTTPClientEmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "go developer" {
			t.Errorf("unexpected text %q", req.Text)
		}

		_, _ = w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", 0)
	client.Token = "secret"

	vec, err := client.EmbedText(context.Background(), "go developer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if client.Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout, got %s", client.Timeout)
	}
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "non 2xx", status: http.StatusBadGateway, body: "upstream down", wantErr: "status 502: upstream down"},
		{name: "malformed", status: http.StatusOK, body: `{"embedding": "nope"}`, wantErr: "failed to unmarshal response"},
		{name: "empty vector", status: http.StatusOK, body: `{"embedding": []}`, wantErr: ErrEmptyVector.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, time.Second).EmbedText(context.Background(), "text")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPClient(srv.URL, 20*time.Millisecond).EmbedText(context.Background(), "text")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPClientRejectsEmptyText(t *testing.T) {
	if _, err := NewHTTPClient("http://127.0.0.1:1", time.Second).EmbedText(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

type blockingProvider struct{}

func (blockingProvider) EmbedText(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 10*time.Millisecond)
	if _, err := p.EmbedText(context.Background(), "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if WithTimeout(blockingProvider{}, 0) != (blockingProvider{}) {
		t.Fatalf("expected provider to be returned unchanged without timeout")
	}
}

func TestRecordIsFresh(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{Vector: []float32{1}, ModelVersion: "m1", UpdatedAt: stamp}

	tests := []struct {
		name    string
		rec     Record
		model   string
		updated time.Time
		want    bool
	}{
		{name: "same model newer vector", rec: rec, model: "m1", updated: stamp.Add(-time.Hour), want: true},
		{name: "any model accepted", rec: rec, model: "", updated: time.Time{}, want: true},
		{name: "model changed", rec: rec, model: "m2", want: false},
		{name: "posting edited after", rec: rec, model: "m1", updated: stamp.Add(time.Minute), want: false},
		{name: "no vector", rec: Record{ModelVersion: "m1"}, model: "m1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.IsFresh(tt.model, tt.updated); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
