package matching

import (
	"fmt"

	"github.com/spigell/hh-matcher/internal/jobs"
)

// Data-quality penalty constants.
const (
	noDescriptionMaxLength = 400
	noDescriptionFactor    = 0.25
	shortTextMaxLength     = 100
	shortTextFactor        = 0.8
)

// Penalty is the multiplier applied to a candidate's raw scores.
type Penalty struct {
	Factor float64
	Reason string
}

// PenaltyFor evaluates the penalty rules in order. Only the first matching
// rule applies.
func PenaltyFor(text jobs.AssembledText) Penalty {
	switch {
	case !text.HasValidDescription && text.Length < noDescriptionMaxLength:
		return Penalty{
			Factor: noDescriptionFactor,
			Reason: fmt.Sprintf("no usable description and short text (x%.2f)", noDescriptionFactor),
		}
	case text.Length < shortTextMaxLength:
		return Penalty{
			Factor: shortTextFactor,
			Reason: fmt.Sprintf("short job text (x%.1f)", shortTextFactor),
		}
	default:
		return Penalty{Factor: 1}
	}
}

func (p Penalty) Apply(v float64) float64 {
	return v * p.Factor
}
