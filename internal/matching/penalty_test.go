package matching

import (
	"math"
	"strings"
	"testing"

	"github.com/spigell/hh-matcher/internal/jobs"
)

func TestPenaltyFor(t *testing.T) {
	tests := []struct {
		name       string
		text       jobs.AssembledText
		raw        float64
		want       float64
		wantReason string
	}{
		{
			name:       "no description and short text",
			text:       jobs.AssembledText{HasValidDescription: false, Length: 150},
			raw:        0.8,
			want:       0.2,
			wantReason: "no usable description",
		},
		{
			name:       "short text",
			text:       jobs.AssembledText{HasValidDescription: true, Length: 50},
			raw:        0.8,
			want:       0.64,
			wantReason: "short job text",
		},
		{
			name: "full posting",
			text: jobs.AssembledText{HasValidDescription: true, Length: 500},
			raw:  0.8,
			want: 0.8,
		},
		{
			name: "no description but long text",
			text: jobs.AssembledText{HasValidDescription: false, Length: 400},
			raw:  0.8,
			want: 0.8,
		},
		{
			name:       "first rule wins",
			text:       jobs.AssembledText{HasValidDescription: false, Length: 50},
			raw:        0.8,
			want:       0.2,
			wantReason: "no usable description",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PenaltyFor(tt.text)
			if got := p.Apply(tt.raw); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if tt.wantReason == "" && p.Reason != "" {
				t.Fatalf("expected no reason, got %q", p.Reason)
			}
			if !strings.Contains(p.Reason, tt.wantReason) {
				t.Fatalf("expected reason containing %q, got %q", tt.wantReason, p.Reason)
			}
		})
	}
}
